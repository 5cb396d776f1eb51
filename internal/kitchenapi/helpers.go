package kitchenapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aquamarinepk/aqm"
)

// decodeSuccessResponse copies the dynamic response payload into dest.
func decodeSuccessResponse(resp *aqm.SuccessResponse, dest any) error {
	if resp == nil {
		return errors.New("nil success response")
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dest)
}

type availabilityResource struct {
	ID         json.Number `json:"id"`
	MenuItemID json.Number `json:"menuItemId"`
	Available  *bool       `json:"available"`
	InStock    *bool       `json:"inStock"`
}

func (r availabilityResource) entry() (int64, bool, bool) {
	id := r.MenuItemID
	if id == "" {
		id = r.ID
	}
	n, err := id.Int64()
	if err != nil {
		return 0, false, false
	}
	switch {
	case r.Available != nil:
		return n, *r.Available, true
	case r.InStock != nil:
		return n, *r.InStock, true
	}
	return 0, false, false
}

// parseAvailability accepts a list of items, an object wrapping such a list
// under "items", or a plain id to bool map.
func parseAvailability(raw any) (map[int64]bool, error) {
	out := make(map[int64]bool)

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var list []availabilityResource
	if err := json.Unmarshal(data, &list); err == nil {
		for _, r := range list {
			if id, ok, valid := r.entry(); valid {
				out[id] = ok
			}
		}
		return out, nil
	}

	var wrapped struct {
		Items []availabilityResource `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Items != nil {
		for _, r := range wrapped.Items {
			if id, ok, valid := r.entry(); valid {
				out[id] = ok
			}
		}
		return out, nil
	}

	var flat map[string]bool
	if err := json.Unmarshal(data, &flat); err == nil {
		for k, v := range flat {
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				continue
			}
			out[id] = v
		}
		return out, nil
	}

	return nil, fmt.Errorf("unrecognized availability payload")
}
