package spatial

import (
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
)

const (
	indexFile    = "spatial.idx"
	fileVersion  = 1
	nearestCount = 20
)

// ErrBuild is returned when the index can neither be loaded nor
// rebuilt from the dictionary. The reverse call that triggered the
// build fails; later calls retry from scratch.
var ErrBuild = errors.New("spatial: index build failed")

// Index is the reverse-geocoding index over one dictionary. It is
// built lazily on the first query, persisted next to the dictionary
// files and reused as long as the dictionary signature matches.
type Index struct {
	store *dictionary.Store

	mu        sync.Mutex
	tree      *kdtree.Tree
	ents      entries
	buildTime time.Duration
}

// NewIndex prepares an index over store without building it.
func NewIndex(store *dictionary.Store) *Index {
	return &Index{store: store}
}

// Ensure builds or loads the index if that has not happened yet.
func (ix *Index) Ensure() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.ensureLocked()
}

// BuildDuration returns the cost of the last index build in this
// process, or zero when a saved index was loaded instead.
func (ix *Index) BuildDuration() time.Duration {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.buildTime
}

func (ix *Index) ensureLocked() error {
	if ix.tree != nil {
		return nil
	}
	path := filepath.Join(ix.store.Dir(), indexFile)

	// 1. Reuse the saved index when it still matches the dictionary.
	ents, err := loadEntries(path, ix.store.Signature())
	if err == nil {
		ix.ents = ents
		ix.tree = kdtree.New(ents, false)
		return nil
	}
	if !os.IsNotExist(err) {
		slog.Warn("discarding unusable spatial index", "path", path, "error", err)
		os.Remove(path)
	}

	// 2. Build from the node table.
	start := time.Now()
	ents, err = ix.buildEntries()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}
	ix.ents = ents
	ix.tree = kdtree.New(ents, false)
	ix.buildTime = time.Since(start)
	slog.Info("spatial index built", "entries", len(ents), "took", ix.buildTime.String())

	// 3. Persist for the next open. The index always rebuilds, so a
	// failed save only costs time.
	if err := saveEntries(path, ix.store.Signature(), ents); err != nil {
		slog.Warn("failed to save spatial index", "path", path, "error", err)
	}
	return nil
}

// buildEntries walks the node table once, in id order. Childless
// nodes below the ward level become points; a block with children
// becomes the bounding rectangle of its subtree and the subtree is
// skipped.
func (ix *Index) buildEntries() (entries, error) {
	count := uint32(ix.store.Count())
	ents := make(entries, 0, 1024)
	seen := make(map[[2]float32]bool)

	id := address.RootID
	for id < count {
		n, err := ix.store.Node(id)
		if err != nil {
			return nil, err
		}

		if n.Level <= address.LevelWard {
			// A new city restarts the duplicate suppression, so the
			// same point reused across cities stays indexed in each.
			clear(seen)
			id++
			continue
		}

		if !n.HasChildren() {
			if !n.HasValidCoordinates() {
				id++
				continue
			}
			key := [2]float32{n.X, n.Y}
			if seen[key] {
				id++
				continue
			}
			ents = append(ents, pointEntry(id, float64(n.X), float64(n.Y)))
			seen[key] = true
			id++
			continue
		}

		if n.Level == address.LevelBlock {
			var rect *entry
			for childID := n.ID + 1; childID < n.SiblingID; childID++ {
				child, err := ix.store.Node(childID)
				if err != nil {
					return nil, err
				}
				if !child.HasValidCoordinates() {
					continue
				}
				x, y := float64(child.X), float64(child.Y)
				if rect == nil {
					rect = &entry{ID: id, MinX: x, MinY: y, MaxX: x, MaxY: y}
				} else {
					rect.MinX = min(rect.MinX, x)
					rect.MinY = min(rect.MinY, y)
					rect.MaxX = max(rect.MaxX, x)
					rect.MaxY = max(rect.MaxY, y)
				}
			}
			switch {
			case rect != nil:
				ents = append(ents, *rect)
			case n.HasValidCoordinates():
				key := [2]float32{n.X, n.Y}
				if !seen[key] {
					ents = append(ents, pointEntry(id, float64(n.X), float64(n.Y)))
					seen[key] = true
				}
			}
			id = n.SiblingID
			continue
		}

		id++
	}
	return ents, nil
}

// Nearest returns up to three address nodes around the query point,
// climbed up to the requested level, with their geodesic distances in
// meters.
func (ix *Index) Nearest(x, y float64, level address.Level) ([]Candidate, error) {
	ix.mu.Lock()
	if err := ix.ensureLocked(); err != nil {
		ix.mu.Unlock()
		return nil, err
	}
	tree := ix.tree
	ix.mu.Unlock()

	// 1. Top k entries in degree space. Rectangles stand for block
	// subtrees; their childless leaves become the candidates.
	keeper := kdtree.NewNKeeper(nearestCount)
	tree.NearestSet(keeper, pointEntry(0, x, y))

	var nodes []address.Node
	for _, kept := range keeper.Heap {
		if kept.Comparable == nil {
			continue
		}
		e := kept.Comparable.(entry)
		n, err := ix.store.Node(e.ID)
		if err != nil {
			return nil, err
		}
		if e.IsPoint() {
			nodes = append(nodes, n)
			continue
		}
		for childID := n.ID + 1; childID < n.SiblingID; childID++ {
			child, err := ix.store.Node(childID)
			if err != nil {
				return nil, err
			}
			if child.SiblingID == childID+1 && child.HasValidCoordinates() {
				nodes = append(nodes, child)
			}
		}
	}

	// 2. Order by real distance on the ellipsoid.
	dists := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		if !n.HasValidCoordinates() {
			continue
		}
		d := Distance(float64(n.X), float64(n.Y), x, y)
		dists = append(dists, Candidate{Node: n, Dist: d})
	}
	sort.SliceStable(dists, func(i, j int) bool { return dists[i].Dist < dists[j].Dist })
	if len(dists) == 0 {
		return nil, nil
	}

	// 3. Pick the surrounding triangle. When the query sits on a
	// candidate (within 1 cm) rounding can push the true owner out of
	// a triangle, so the nearest three are returned as they are.
	if len(dists) <= 3 || dists[0].Dist < 1e-2 {
		if len(dists) > 3 {
			dists = dists[:3]
		}
	} else {
		dists = selectTriangle(x, y, dists)
	}

	// 4. Climb to the requested level and drop duplicates.
	results := make([]Candidate, 0, len(dists))
	registered := make(map[uint32]bool)
	for _, c := range dists {
		n := c.Node
		for n.Level > level {
			parent, ok, err := ix.store.Parent(n)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			n = parent
		}
		if registered[n.ID] {
			continue
		}
		registered[n.ID] = true
		results = append(results, Candidate{Node: n, Dist: c.Dist})
	}
	return results, nil
}

// --- PERSISTENCE ---

type savedIndex struct {
	Version   uint32
	Signature string
	Entries   []entry
}

func loadEntries(path, signature string) (entries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var saved savedIndex
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if saved.Version != fileVersion {
		return nil, fmt.Errorf("unsupported spatial index version %d", saved.Version)
	}
	if saved.Signature != signature {
		return nil, fmt.Errorf("spatial index was built for another dictionary (%s)", saved.Signature)
	}
	return entries(saved.Entries), nil
}

func saveEntries(path, signature string, ents entries) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	saved := savedIndex{Version: fileVersion, Signature: signature, Entries: ents}
	if err := gob.NewEncoder(tmp).Encode(&saved); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode spatial index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
