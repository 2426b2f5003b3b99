package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

type FaceVertex struct {
	VertexIdx   int32
	TexCoordIdx int32
	NormalIdx   int32
}

const defaultGroup = "default"

// DecodeOBJ parses a Wavefront OBJ file and the MTL libraries it references.
// Faces are split into one geometry per material in first-use order.
func DecodeOBJ(ctx context.Context, src Source) (*DecodedModel, error) {
	var (
		vertices      []float32
		textureCoords []float32
		normals       []float32
		groupOrder    []string
		groups        = make(map[string][]FaceVertex)
		current       = defaultGroup
	)

	model := &DecodedModel{Name: strings.TrimSuffix(path.Base(src.URL), path.Ext(src.URL))}
	materialIndex := make(map[string]int)

	scanner := bufio.NewScanner(bytes.NewReader(src.Data))
	line := 0
	for scanner.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
			continue
		}
		switch parts[0] {
		case "v":
			vertex, err := parseFloats(parts[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: vertex: %w", src.URL, line, err)
			}
			vertices = append(vertices, vertex...)
		case "vn":
			normal, err := parseFloats(parts[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: normal: %w", src.URL, line, err)
			}
			normals = append(normals, normal...)
		case "vt":
			texCoord, err := parseFloats(parts[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: texture coordinate: %w", src.URL, line, err)
			}
			textureCoords = append(textureCoords, texCoord...)
		case "f":
			if len(parts) < 4 {
				return nil, fmt.Errorf("%s:%d: face needs at least 3 vertices", src.URL, line)
			}
			faceVertices, err := parseFace(parts[1:])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: face: %w", src.URL, line, err)
			}
			if _, ok := groups[current]; !ok {
				groupOrder = append(groupOrder, current)
			}
			groups[current] = append(groups[current], faceVertices...)
		case "mtllib":
			for _, lib := range parts[1:] {
				data, err := src.Related(ctx, lib)
				if err != nil {
					// Missing libraries fall back to the default material.
					logger.Log.Warn("Could not open material library",
						zap.String("model", src.URL),
						zap.String("mtllib", lib),
						zap.Error(err))
					continue
				}
				for _, desc := range parseMTL(data, src.Resolve(lib)) {
					materialIndex[desc.Params.Name] = len(model.Materials)
					model.Materials = append(model.Materials, desc)
				}
			}
		case "usemtl":
			if len(parts) >= 2 {
				current = parts[1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", src.URL, err)
	}
	if len(groupOrder) == 0 {
		return nil, fmt.Errorf("%s: no faces", src.URL)
	}

	for _, name := range groupOrder {
		geom, err := unify(groups[name], vertices, textureCoords, normals)
		if err != nil {
			return nil, fmt.Errorf("%s: group %s: %w", src.URL, name, err)
		}
		geom.Name = model.Name + "/" + name
		geom.CalculateBoundingSphere()

		mat := -1
		if i, ok := materialIndex[name]; ok {
			mat = i
		} else if name != defaultGroup {
			logger.Log.Debug("Material not found", zap.String("material", name))
		}
		model.Parts = append(model.Parts, Part{
			Name:     name,
			Geometry: len(model.Geometries),
			Material: mat,
		})
		model.Geometries = append(model.Geometries, geom)
	}

	logger.Log.Info("OBJ decoded",
		zap.String("url", src.URL),
		zap.Int("positions", len(vertices)/3),
		zap.Int("geometries", len(model.Geometries)),
		zap.Int("materials", len(model.Materials)))
	return model, nil
}

type vertexKey struct {
	v, vt, vn int32
}

// unify converts per-attribute OBJ indices into one interleaved vertex buffer.
func unify(faces []FaceVertex, vertices, textureCoords, normals []float32) (*renderer.Geometry, error) {
	vertexMap := make(map[vertexKey]uint32)
	g := &renderer.Geometry{}
	hasNormals := true

	for _, fv := range faces {
		key := vertexKey{fv.VertexIdx, fv.TexCoordIdx, fv.NormalIdx}
		if idx, ok := vertexMap[key]; ok {
			g.Indices = append(g.Indices, idx)
			continue
		}

		if fv.VertexIdx < 0 || int(fv.VertexIdx*3+2) >= len(vertices) {
			return nil, fmt.Errorf("vertex index %d out of range", fv.VertexIdx+1)
		}
		idx := uint32(g.VertexCount())
		vertexMap[key] = idx

		g.InterleavedData = append(g.InterleavedData,
			vertices[fv.VertexIdx*3], vertices[fv.VertexIdx*3+1], vertices[fv.VertexIdx*3+2])

		if fv.TexCoordIdx >= 0 && int(fv.TexCoordIdx*2+1) < len(textureCoords) {
			g.InterleavedData = append(g.InterleavedData,
				textureCoords[fv.TexCoordIdx*2], textureCoords[fv.TexCoordIdx*2+1])
		} else {
			g.InterleavedData = append(g.InterleavedData, 0, 0)
		}

		if fv.NormalIdx >= 0 && int(fv.NormalIdx*3+2) < len(normals) {
			g.InterleavedData = append(g.InterleavedData,
				normals[fv.NormalIdx*3], normals[fv.NormalIdx*3+1], normals[fv.NormalIdx*3+2])
		} else {
			hasNormals = false
			g.InterleavedData = append(g.InterleavedData, 0, 0, 0)
		}

		g.Indices = append(g.Indices, idx)
	}

	// Some models have broken or missing normals, so we recalculate them ourselves
	if !hasNormals {
		RecalculateNormals(g)
	}
	return g, nil
}

// RecalculateNormals replaces the normals of g with area weighted face normals.
func RecalculateNormals(g *renderer.Geometry) {
	n := g.VertexCount()
	acc := make([]mgl32.Vec3, n)
	for i := 0; i+2 < len(g.Indices); i += 3 {
		i0, i1, i2 := int(g.Indices[i]), int(g.Indices[i+1]), int(g.Indices[i+2])
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}
		v0, v1, v2 := g.Position(i0), g.Position(i1), g.Position(i2)
		normal := v1.Sub(v0).Cross(v2.Sub(v0))
		acc[i0] = acc[i0].Add(normal)
		acc[i1] = acc[i1].Add(normal)
		acc[i2] = acc[i2].Add(normal)
	}
	for i, v := range acc {
		if v.Len() > 0 {
			v = v.Normalize()
		} else {
			v = mgl32.Vec3{0, 1, 0}
		}
		o := i*renderer.VertexStride + 5
		g.InterleavedData[o], g.InterleavedData[o+1], g.InterleavedData[o+2] = v[0], v[1], v[2]
	}
}

// parseMTL reads material definitions. Texture paths are resolved against the
// library's own URL.
func parseMTL(data []byte, libURL string) []MaterialDesc {
	var out []MaterialDesc
	var current *MaterialDesc

	resolve := func(p string) string {
		p = strings.ReplaceAll(p, "\\", "/")
		if path.IsAbs(p) {
			return p
		}
		return path.Join(path.Dir(libURL), p)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				logger.Log.Warn("Malformed material line", zap.String("mtllib", libURL))
				continue
			}
			out = append(out, MaterialDesc{
				Params: renderer.Material{
					Name:      fields[1],
					Alpha:     1.0,
					Roughness: 0.5,
					Metallic:  0.0,
					Exposure:  1.0,
				},
				Textures: make(map[renderer.TextureSlot]string),
			})
			current = &out[len(out)-1]
			continue
		}
		if current == nil {
			continue
		}

		m := &current.Params
		switch fields[0] {
		case "Kd":
			if len(fields) == 4 {
				m.DiffuseColor = parseColor(fields[1:])
			}
		case "Ks":
			if len(fields) == 4 {
				m.SpecularColor = parseColor(fields[1:])
			}
		case "Ns":
			if len(fields) == 2 {
				m.Shininess = parseFloat(fields[1])
			}
		case "d":
			if len(fields) == 2 {
				m.Alpha = parseFloat(fields[1])
				m.Transparent = m.Alpha < 1
			}
		case "Pr":
			if len(fields) == 2 {
				m.Roughness = parseFloat(fields[1])
			}
		case "Pm":
			if len(fields) == 2 {
				m.Metallic = parseFloat(fields[1])
			}
		case "map_Kd", "map_Bump", "bump", "norm", "map_Pr", "map_Pm", "map_Ke":
			// The path is the last field; options may precede it.
			if len(fields) >= 2 {
				current.Textures[mtlSlot(fields[0])] = resolve(fields[len(fields)-1])
			}
		}
	}
	return out
}

func mtlSlot(statement string) renderer.TextureSlot {
	switch statement {
	case "map_Bump", "bump", "norm":
		return renderer.SlotNormal
	case "map_Pr":
		return renderer.SlotRoughness
	case "map_Pm":
		return renderer.SlotMetalness
	case "map_Ke":
		return renderer.SlotEmissive
	default:
		return renderer.SlotDiffuse
	}
}

func parseColor(fields []string) [3]float32 {
	var color [3]float32
	for i := 0; i < 3 && i < len(fields); i++ {
		color[i] = parseFloat(fields[i])
	}
	return color
}

func parseFloat(s string) float32 {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		logger.Log.Warn("Error parsing material value", zap.String("value", s), zap.Error(err))
		return 0
	}
	return float32(f)
}

// parseFloats parses the first n fields. Extra components such as w are ignored.
func parseFloats(parts []string, n int) ([]float32, error) {
	if len(parts) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(parts))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		val, err := strconv.ParseFloat(parts[i], 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %v: %w", parts[i], err)
		}
		out[i] = float32(val)
	}
	return out, nil
}

func parseFace(parts []string) ([]FaceVertex, error) {
	face := make([]FaceVertex, 0, len(parts))
	for _, part := range parts {
		vals := strings.Split(part, "/")

		vertexIdx, err := strconv.ParseInt(vals[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vertex index %v: %w", vals[0], err)
		}

		var texCoordIdx int32 = -1
		if len(vals) > 1 && vals[1] != "" {
			texIdx, err := strconv.ParseInt(vals[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid texture coordinate index %v: %w", vals[1], err)
			}
			texCoordIdx = int32(texIdx - 1) // .obj indices start at 1, not 0
		}

		var normalIdx int32 = -1
		if len(vals) > 2 && vals[2] != "" {
			normIdx, err := strconv.ParseInt(vals[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid normal index %v: %w", vals[2], err)
			}
			normalIdx = int32(normIdx - 1)
		}

		face = append(face, FaceVertex{
			VertexIdx:   int32(vertexIdx - 1),
			TexCoordIdx: texCoordIdx,
			NormalIdx:   normalIdx,
		})
	}

	if len(face) == 3 {
		return face, nil
	}
	// Triangulate quads and larger polygons as a fan from the first vertex
	triangulated := make([]FaceVertex, 0, (len(face)-2)*3)
	for i := 1; i < len(face)-1; i++ {
		triangulated = append(triangulated, face[0], face[i], face[i+1])
	}
	return triangulated, nil
}
