// internal/lobby/roll.go
package lobby

import "encoding/json"

// Roll is a published selection of randomizer results, visible to every
// member of the lobby. Rolls are replaced wholesale, never merged.
type Roll struct {
	Characters []string `json:"characters"`
	Bosses     []string `json:"bosses"`
}

// rollWire mirrors Roll on the wire plus the deprecated singular "boss"
// field some older clients still send. It is normalized into Bosses on
// decode and never written back out.
type rollWire struct {
	Characters []string `json:"characters"`
	Bosses     []string `json:"bosses"`
	Boss       string   `json:"boss,omitempty"`
}

func (r *Roll) UnmarshalJSON(data []byte) error {
	var w rollWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Characters = w.Characters
	r.Bosses = w.Bosses
	if len(r.Bosses) == 0 && w.Boss != "" {
		r.Bosses = []string{w.Boss}
	}
	return nil
}
