package tracker

import (
	"cmp"
	"slices"
	"strings"

	"github.com/erazemk/teamdesk/internal/model"
)

// Counts summarises a group of units.
type Counts struct {
	Total     int `json:"total"`
	Out       int `json:"out"`
	Available int `json:"available"`
}

func (c *Counts) add(u model.Unit) {
	c.Total++
	if u.Active {
		c.Out++
	} else {
		c.Available++
	}
}

// TypeInventory is the inventory of one equipment type.
type TypeInventory struct {
	Type   string               `json:"type"`
	Counts Counts               `json:"counts"`
	Units  []model.Unit         `json:"units"`
	Models []model.ModelSummary `json:"models"`
	// Available units in assignment order: by model name, then tag.
	Available []model.Unit `json:"available"`
}

// Inventory groups every unit by type.
type Inventory struct {
	Types []TypeInventory `json:"types"`
}

// ByType returns the inventory of typ, or nil.
func (inv Inventory) ByType(typ string) *TypeInventory {
	for i := range inv.Types {
		if inv.Types[i].Type == typ {
			return &inv.Types[i]
		}
	}
	return nil
}

// Aggregate partitions units by type and computes counts, per-model summaries
// and the ordered list of assignable units. Every known type is present even
// when it has no units; unknown types follow in name order. Units keep their
// input order within a type.
func Aggregate(units []model.Unit) Inventory {
	byType := make(map[string]*TypeInventory)
	var extra []string

	inv := Inventory{Types: make([]TypeInventory, 0, len(model.EquipmentTypes))}
	for _, typ := range model.EquipmentTypes {
		inv.Types = append(inv.Types, TypeInventory{Type: typ})
	}
	for i := range inv.Types {
		byType[inv.Types[i].Type] = &inv.Types[i]
	}

	grouped := make(map[string][]model.Unit)
	for _, u := range units {
		if _, ok := byType[u.Type]; !ok && grouped[u.Type] == nil {
			extra = append(extra, u.Type)
		}
		grouped[u.Type] = append(grouped[u.Type], u)
	}
	slices.Sort(extra)
	for _, typ := range extra {
		inv.Types = append(inv.Types, TypeInventory{Type: typ})
	}

	for i := range inv.Types {
		ti := &inv.Types[i]
		ti.Units = grouped[ti.Type]
		if ti.Units == nil {
			ti.Units = []model.Unit{}
		}
		ti.Available = []model.Unit{}

		models := make(map[string]*model.ModelSummary)
		var names []string
		for _, u := range ti.Units {
			ti.Counts.add(u)

			s, ok := models[u.Model]
			if !ok {
				s = &model.ModelSummary{Type: ti.Type, Model: u.Model}
				models[u.Model] = s
				names = append(names, u.Model)
			}
			s.Total++
			if u.Active {
				s.Out++
			} else {
				s.Available++
				ti.Available = append(ti.Available, u)
			}
		}

		slices.SortFunc(names, compareModels)
		ti.Models = make([]model.ModelSummary, 0, len(names))
		for _, name := range names {
			ti.Models = append(ti.Models, *models[name])
		}

		slices.SortStableFunc(ti.Available, func(a, b model.Unit) int {
			if c := compareModels(a.Model, b.Model); c != 0 {
				return c
			}
			return cmp.Compare(a.Tag, b.Tag)
		})
	}

	return inv
}

// compareModels orders model names case-insensitively, falling back to a
// byte comparison so the order is total.
func compareModels(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
