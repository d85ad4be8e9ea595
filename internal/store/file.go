package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/h0rv/sumup/internal/domain"
)

// boardFile is the YAML description of a local board.
//
//	board: {id: b1, name: Sprint}
//	lists:
//	  - id: todo
//	    name: To Do
//	    cards:
//	      - {id: c1, name: Summary}
//	      - {id: c2, name: Login page, pos: 2048}
type boardFile struct {
	Board domain.Board `yaml:"board"`
	Lists []listFile   `yaml:"lists"`
}

type listFile struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Pos   *float64   `yaml:"pos"`
	Cards []cardFile `yaml:"cards"`
}

// cardFile keeps an explicit pos: 0 apart from a missing position.
type cardFile struct {
	ID   string   `yaml:"id"`
	Name string   `yaml:"name"`
	Pos  *float64 `yaml:"pos"`
	URL  string   `yaml:"url"`
}

// LoadFile reads a YAML board description into a new Store.
// Lists and cards without an explicit position keep their file order.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open board file: %w", err)
	}
	defer f.Close()

	var bf boardFile
	if err := yaml.NewDecoder(f).Decode(&bf); err != nil {
		return nil, fmt.Errorf("failed to decode board file %s: %w", path, err)
	}
	return fromFile(bf)
}

func fromFile(bf boardFile) (*Store, error) {
	if bf.Board.ID == "" {
		return nil, fmt.Errorf("board id is required")
	}

	s := New()
	s.SetBoard(&bf.Board)

	lists := make([]domain.List, 0, len(bf.Lists))
	var cards []domain.CardRef
	seen := make(map[string]bool)
	for i, lf := range bf.Lists {
		if lf.ID == "" {
			return nil, fmt.Errorf("list %d has no id", i+1)
		}
		pos := float64((i + 1) * posStep)
		if lf.Pos != nil {
			pos = *lf.Pos
		}
		name := lf.Name
		if name == "" {
			name = lf.ID
		}
		lists = append(lists, domain.List{ID: lf.ID, Name: name, Pos: pos})

		for j, cf := range lf.Cards {
			if cf.ID == "" {
				return nil, fmt.Errorf("card %d in list %s has no id", j+1, lf.ID)
			}
			if seen[cf.ID] {
				return nil, fmt.Errorf("duplicate card id %s", cf.ID)
			}
			seen[cf.ID] = true
			card := domain.CardRef{
				ID:     cf.ID,
				Name:   cf.Name,
				ListID: lf.ID,
				Pos:    float64((j + 1) * posStep),
				URL:    cf.URL,
			}
			if cf.Pos != nil {
				card.Pos = *cf.Pos
			}
			cards = append(cards, card)
		}
	}

	s.UpsertLists(lists)
	s.UpsertCards(cards)
	return s, nil
}
