package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StationFurnace marks recipes that need a nearby furnace.
const StationFurnace = "FURNACE"

type Catalogs struct {
	Recipes RecipeCatalog
}

type RecipeCatalog struct {
	ByID   map[string]RecipeDef
	Digest string
}

type RecipeDef struct {
	RecipeID  string      `json:"recipe_id"`
	Station   string      `json:"station"`
	Inputs    []ItemCount `json:"inputs"`
	Outputs   []ItemCount `json:"outputs"`
	TimeTicks int         `json:"time_ticks"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes); err != nil {
		return nil, err
	}
	return &c, nil
}

// IDs returns recipe ids in sorted order.
func (rc RecipeCatalog) IDs() []string {
	ids := make([]string, 0, len(rc.ByID))
	for id := range rc.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadRecipes(path string, out *RecipeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseRecipes(raw, out)
}

func parseRecipes(raw []byte, out *RecipeCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]RecipeDef{}
	for _, r := range defs {
		if r.RecipeID == "" {
			return fmt.Errorf("recipes.json: empty recipe_id")
		}
		if _, dup := out.ByID[r.RecipeID]; dup {
			return fmt.Errorf("recipes.json: duplicate recipe_id %q", r.RecipeID)
		}
		if len(r.Inputs) == 0 || len(r.Outputs) == 0 {
			return fmt.Errorf("recipes.json: recipe %q needs inputs and outputs", r.RecipeID)
		}
		for _, ic := range append(append([]ItemCount(nil), r.Inputs...), r.Outputs...) {
			if strings.TrimSpace(ic.Item) == "" || ic.Count <= 0 {
				return fmt.Errorf("recipes.json: recipe %q has bad item count %+v", r.RecipeID, ic)
			}
		}
		out.ByID[r.RecipeID] = r
	}
	return nil
}
