package dictionary

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Dataset describes one source dataset of the dictionary. The id
// doubles as the search priority of the nodes built from it: when two
// results match an equally long part of the query, the node from the
// dataset with the smaller id wins.
type Dataset struct {
	ID    uint8  `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// loadDatasets reads the dataset catalog. A dictionary without one is
// valid and yields an empty catalog.
func loadDatasets(path string) ([]Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var datasets []Dataset
	if err := yaml.Unmarshal(b, &datasets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].ID < datasets[j].ID })
	return datasets, nil
}

// saveDatasets writes the dataset catalog in id order.
func saveDatasets(path string, datasets []Dataset) error {
	sorted := make([]Dataset, len(datasets))
	copy(sorted, datasets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	b, err := yaml.Marshal(sorted)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
