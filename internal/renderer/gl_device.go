//go:build gl

package renderer

import (
	"image"

	"GopherScene/internal/logger"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"
)

// GLDevice uploads to the OpenGL context current on the calling thread.
// gl.Init must have succeeded before any upload.
type GLDevice struct {
	ready   bool
	buffers map[uint32][2]uint32 // vao -> vbo, ebo
}

func NewGLDevice() *GLDevice {
	return &GLDevice{ready: true, buffers: make(map[uint32][2]uint32)}
}

func (d *GLDevice) Ready() bool {
	return d.ready
}

// Lose marks the context as gone, e.g. when the window closes.
func (d *GLDevice) Lose() {
	d.ready = false
}

func (d *GLDevice) UploadTexture(rgba *image.RGBA) (uint32, error) {
	if !d.ready {
		return 0, ErrDeviceLost
	}

	var textureID uint32
	gl.GenTextures(1, &textureID)
	gl.BindTexture(gl.TEXTURE_2D, textureID)
	gl.TexImage2D(
		gl.TEXTURE_2D, 0, gl.RGBA,
		int32(rgba.Rect.Size().X), int32(rgba.Rect.Size().Y),
		0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)

	logger.Log.Debug("Texture uploaded",
		zap.Uint32("textureID", textureID),
		zap.Int("width", rgba.Rect.Size().X),
		zap.Int("height", rgba.Rect.Size().Y))
	return textureID, nil
}

func (d *GLDevice) DeleteTexture(id uint32) {
	if id == 0 || !d.ready {
		return
	}
	gl.DeleteTextures(1, &id)
}

// UploadGeometry creates a VAO with the interleaved layout
// position(3) uv(2) normal(3) and returns its id.
func (d *GLDevice) UploadGeometry(g *Geometry) (uint32, error) {
	if !d.ready {
		return 0, ErrDeviceLost
	}

	var vao, vbo, ebo uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)

	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	if len(g.InterleavedData) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(g.InterleavedData)*4, gl.Ptr(g.InterleavedData), gl.STATIC_DRAW)
	}

	gl.GenBuffers(1, &ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ebo)
	if len(g.Indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, gl.Ptr(g.Indices), gl.STATIC_DRAW)
	}

	stride := int32(VertexStride * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 3, gl.FLOAT, false, stride, 5*4)
	gl.EnableVertexAttribArray(2)
	gl.BindVertexArray(0)

	d.buffers[vao] = [2]uint32{vbo, ebo}
	return vao, nil
}

func (d *GLDevice) DeleteGeometry(id uint32) {
	if id == 0 || !d.ready {
		return
	}
	if bufs, ok := d.buffers[id]; ok {
		gl.DeleteBuffers(2, &bufs[0])
		delete(d.buffers, id)
	}
	gl.DeleteVertexArrays(1, &id)
}

func (d *GLDevice) SetViewport(width, height int32) {
	if !d.ready {
		return
	}
	gl.Viewport(0, 0, width, height)
}
