package loader

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"GopherScene/internal/renderer"

	"github.com/aquilax/go-perlin"
)

// TerrainParams configures the procedural heightfield decoder. They are read
// from the query of a proc://terrain URL, e.g.
// proc://terrain?size=32&spacing=1&seed=7&amplitude=4&frequency=0.08
type TerrainParams struct {
	Size      int
	Spacing   float32
	Seed      int64
	Amplitude float32
	Frequency float64
}

func DefaultTerrainParams() TerrainParams {
	return TerrainParams{Size: 32, Spacing: 1, Seed: 1, Amplitude: 4, Frequency: 0.08}
}

func ParseTerrainParams(raw string) (TerrainParams, error) {
	p := DefaultTerrainParams()
	u, err := url.Parse(raw)
	if err != nil {
		return p, err
	}
	q := u.Query()

	if v := q.Get("size"); v != "" {
		if p.Size, err = strconv.Atoi(v); err != nil {
			return p, fmt.Errorf("size: %w", err)
		}
	}
	if v := q.Get("seed"); v != "" {
		if p.Seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return p, fmt.Errorf("seed: %w", err)
		}
	}
	if v := q.Get("frequency"); v != "" {
		if p.Frequency, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("frequency: %w", err)
		}
	}
	for name, dst := range map[string]*float32{"spacing": &p.Spacing, "amplitude": &p.Amplitude} {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return p, fmt.Errorf("%s: %w", name, err)
			}
			*dst = float32(f)
		}
	}

	if p.Size < 2 {
		return p, fmt.Errorf("size must be at least 2")
	}
	return p, nil
}

// DecodeTerrain generates a perlin noise heightfield as a single part model.
func DecodeTerrain(ctx context.Context, src Source) (*DecodedModel, error) {
	params, err := ParseTerrainParams(src.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.URL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	geom := Heightfield(params)
	geom.Name = "terrain"

	mat := renderer.DefaultMaterial()
	mat.Name = "terrain"
	mat.DiffuseColor = [3]float32{0.35, 0.55, 0.25}
	mat.Roughness = 0.9

	return &DecodedModel{
		Name:       "terrain",
		Geometries: []*renderer.Geometry{geom},
		Materials:  []MaterialDesc{{Params: *mat}},
		Parts:      []Part{{Name: "terrain", Geometry: 0, Material: 0}},
	}, nil
}

// Heightfield builds a size x size grid centred on the origin.
func Heightfield(p TerrainParams) *renderer.Geometry {
	noise := perlin.NewPerlin(2, 2, 3, p.Seed)
	g := &renderer.Geometry{
		InterleavedData: make([]float32, 0, p.Size*p.Size*renderer.VertexStride),
		Indices:         make([]uint32, 0, (p.Size-1)*(p.Size-1)*6),
	}

	half := float32(p.Size-1) * p.Spacing * 0.5
	for x := 0; x < p.Size; x++ {
		for z := 0; z < p.Size; z++ {
			h := float32(noise.Noise2D(float64(x)*p.Frequency, float64(z)*p.Frequency)) * p.Amplitude
			u := float32(x) / float32(p.Size-1)
			v := float32(z) / float32(p.Size-1)
			g.InterleavedData = append(g.InterleavedData,
				float32(x)*p.Spacing-half, h, float32(z)*p.Spacing-half,
				u, v,
				0, 1, 0)
		}
	}

	for x := 0; x < p.Size-1; x++ {
		for z := 0; z < p.Size-1; z++ {
			topLeft := uint32(x*p.Size + z)
			topRight := topLeft + 1
			bottomLeft := uint32((x+1)*p.Size + z)
			bottomRight := bottomLeft + 1

			g.Indices = append(g.Indices, topLeft, topRight, bottomRight, topLeft, bottomRight, bottomLeft)
		}
	}

	RecalculateNormals(g)
	g.CalculateBoundingSphere()
	return g
}
