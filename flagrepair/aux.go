package flagrepair

import "github.com/biogo/hts/sam"

var (
	nhTag = sam.Tag{'N', 'H'}
	hiTag = sam.Tag{'H', 'I'}
	asTag = sam.Tag{'A', 'S'}
	xsTag = sam.Tag{'X', 'S'}
)

func asValue(r *sam.Record) (int, bool) {
	aux := r.AuxFields.Get(asTag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	default:
		return 0, false
	}
}

// setAux replaces r's existing tag aux field, if any, or appends a new one.
func setAux(r *sam.Record, tag sam.Tag, value int) {
	aux, err := sam.NewAux(tag, value)
	if err != nil {
		return
	}
	for i, a := range r.AuxFields {
		if a.Tag() == tag {
			r.AuxFields[i] = aux
			return
		}
	}
	r.AuxFields = append(r.AuxFields, aux)
}
