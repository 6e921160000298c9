package sim

import (
	"fmt"

	"github.com/asdine/storm/v3"
	"github.com/go-gl/mathgl/mgl64"
)

// Point is a named machine position taught by the operator.
type Point struct {
	ID   int    `storm:"increment"` // pk
	Name string `storm:"unique"`

	X float64
	Y float64
	Z float64
}

// Vec returns the point as a Cartesian vector in mm.
func (p Point) Vec() mgl64.Vec3 { return mgl64.Vec3{p.X, p.Y, p.Z} }

// PointStore keeps taught points in a bolt file via storm, so they
// survive restarts of the shell.
type PointStore struct {
	db *storm.DB
}

// OpenPoints opens (or creates) the point database at path.
func OpenPoints(path string) (*PointStore, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sim: opening point store: %w", err)
	}
	if err := db.Init(&Point{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("sim: initialising point store: %w", err)
	}
	return &PointStore{db: db}, nil
}

// Save stores pos under name, replacing any previous point with that
// name.
func (s *PointStore) Save(name string, pos mgl64.Vec3) error {
	if name == "" {
		return fmt.Errorf("sim: point needs a name")
	}

	var p Point
	err := s.db.One("Name", name, &p)
	if err != nil && err != storm.ErrNotFound {
		return fmt.Errorf("sim: looking up point %q: %w", name, err)
	}

	p.Name = name
	p.X, p.Y, p.Z = pos.X(), pos.Y(), pos.Z()
	if err := s.db.Save(&p); err != nil {
		return fmt.Errorf("sim: saving point %q: %w", name, err)
	}
	return nil
}

// Get looks up a point by name.
func (s *PointStore) Get(name string) (mgl64.Vec3, error) {
	var p Point
	if err := s.db.One("Name", name, &p); err != nil {
		if err == storm.ErrNotFound {
			return mgl64.Vec3{}, fmt.Errorf("sim: no point named %q", name)
		}
		return mgl64.Vec3{}, fmt.Errorf("sim: looking up point %q: %w", name, err)
	}
	return p.Vec(), nil
}

// All returns every taught point in insertion order.
func (s *PointStore) All() ([]Point, error) {
	var points []Point
	if err := s.db.All(&points); err != nil {
		return nil, fmt.Errorf("sim: listing points: %w", err)
	}
	return points, nil
}

// Close releases the underlying database file.
func (s *PointStore) Close() error {
	return s.db.Close()
}
