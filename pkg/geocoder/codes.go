package geocoder

import (
	"context"

	"github.com/banchi-geo/banchi/pkg/address"
)

// SearchByMachiazaID returns the nodes carrying the given machiaza
// id. A 12-digit id starts with the city code and a 13-digit one with
// the local-government city code; both restrict the hits to that
// city. A bare 7-digit id matches nationwide.
func (l *LocalTree) SearchByMachiazaID(ctx context.Context, id string) ([]address.Node, error) {
	id = address.CleanNumeric(id)
	var cities []address.Node
	var err error
	switch len(id) {
	case 12:
		cities, err = l.SearchByCitycode(ctx, id[:5])
	case 13:
		cities, err = l.SearchByCitycode(ctx, id[:6])
	default:
		return l.store.NodesByNote(address.NoteKeyAzaID, id)
	}
	if err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return nil, nil
	}
	city := cities[0]
	candidates, err := l.store.NodesByNote(address.NoteKeyAzaID, id[len(id)-7:])
	if err != nil {
		return nil, err
	}
	var out []address.Node
	for _, n := range candidates {
		if n.ID >= city.ID && n.ID < city.SiblingID {
			out = append(out, n)
		}
	}
	return out, nil
}

// SearchByPostcode returns the nodes annotated with the given 7-digit
// postal code.
func (l *LocalTree) SearchByPostcode(ctx context.Context, code string) ([]address.Node, error) {
	code = address.CleanNumeric(code)
	if len(code) != 7 {
		return nil, nil
	}
	return l.store.NodesByNote(address.NoteKeyPostcode, code)
}

// SearchByPrefcode returns the prefecture nodes for a JIS X 0401
// code, in its bare 2-digit or 6-digit local-government form.
func (l *LocalTree) SearchByPrefcode(ctx context.Context, code string) ([]address.Node, error) {
	code = address.CleanNumeric(code)
	switch len(code) {
	case 2:
	case 6:
		code = code[:2]
	default:
		return nil, nil
	}
	return l.store.NodesByNote(address.NoteKeyPrefCode, code)
}

// SearchByCitycode returns the city nodes for a JIS X 0402 code, in
// its bare 5-digit or 6-digit local-government form.
func (l *LocalTree) SearchByCitycode(ctx context.Context, code string) ([]address.Node, error) {
	code = address.CleanNumeric(code)
	switch len(code) {
	case 5:
	case 6:
		code = code[:5]
	default:
		return nil, nil
	}
	return l.store.NodesByNote(address.NoteKeyCityCode, code)
}
