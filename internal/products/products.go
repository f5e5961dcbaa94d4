package products

import (
	"errors"
	"fmt"
)

// Group classifies a product for pipeline sequencing. Standard products are
// dispatched one by one; Index and Tillage products are computed in a single
// batched call on atmosphere-corrected bands.
type Group string

const (
	Standard Group = "Standard"
	Index    Group = "Index"
	Tillage  Group = "Tillage"
)

var ErrUnknownProduct = errors.New("unknown product")

// DuplicateProductError reports a product id registered in more than one
// group. This is a catalogue configuration error, not a runtime condition.
type DuplicateProductError struct {
	ID     string
	Groups []Group
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("product %q belongs to multiple groups %v", e.ID, e.Groups)
}

// Descriptor describes one product in the catalogue.
type Descriptor struct {
	ID          string
	Description string

	// TOA marks products computed from top-of-atmosphere data; they never
	// receive atmospheric correction.
	TOA bool

	// SkipAtmosphere opts a non-TOA product out of triggering the
	// atmospheric model.
	SkipAtmosphere bool
}

var catalogue = map[string]Descriptor{
	"rad":   {ID: "rad", Description: "Surface-leaving radiance"},
	"ref":   {ID: "ref", Description: "Surface reflectance"},
	"acca":  {ID: "acca", Description: "Automated Cloud Cover Assessment", TOA: true},
	"bi":    {ID: "bi", Description: "Brightness Index"},
	"ndvi":  {ID: "ndvi", Description: "Normalized Difference Vegetation Index"},
	"evi":   {ID: "evi", Description: "Enhanced Vegetation Index"},
	"lswi":  {ID: "lswi", Description: "Land Surface Water Index"},
	"ndsi":  {ID: "ndsi", Description: "Normalized Difference Snow Index"},
	"satvi": {ID: "satvi", Description: "Soil-adjusted Total Vegetation Index"},
	"ndti":  {ID: "ndti", Description: "Normalized Difference Tillage Index"},
	"crc":   {ID: "crc", Description: "Crop Residue Cover"},
	"sti":   {ID: "sti", Description: "Standard Tillage Index"},
	"isti":  {ID: "isti", Description: "Inverse Standard Tillage Index"},
}

var groups = map[Group][]string{
	Standard: {"rad", "ref", "acca"},
	Index:    {"bi", "ndvi", "evi", "lswi", "ndsi", "satvi"},
	Tillage:  {"ndti", "crc", "sti", "isti"},
}

// Get returns the descriptor for a product id.
func Get(id string) (Descriptor, error) {
	d, ok := catalogue[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownProduct, id)
	}
	return d, nil
}

// All returns every catalogued product id, grouped.
func All() map[Group][]string {
	out := make(map[Group][]string, len(groups))
	for g, ids := range groups {
		out[g] = append([]string(nil), ids...)
	}
	return out
}

// GroupOf returns the single group a product belongs to. A product found in
// more than one group yields a DuplicateProductError.
func GroupOf(id string) (Group, error) {
	var found []Group
	for g, ids := range groups {
		for _, pid := range ids {
			if pid == id {
				found = append(found, g)
			}
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrUnknownProduct, id)
	case 1:
		return found[0], nil
	default:
		return "", &DuplicateProductError{ID: id, Groups: found}
	}
}

// Request maps a product id to its arguments. The first argument is always
// the output path; products may take trailing options ("toa", morphology
// overrides for acca).
type Request map[string][]string

// Partition splits a request by catalogue group.
func Partition(req Request) (map[Group]Request, error) {
	out := map[Group]Request{
		Standard: {},
		Index:    {},
		Tillage:  {},
	}
	for id, args := range req {
		g, err := GroupOf(id)
		if err != nil {
			return nil, err
		}
		out[g][id] = args
	}
	return out, nil
}
