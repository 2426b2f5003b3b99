package renderer

import (
	"errors"
	"image"
	"sync"
)

// ErrDeviceLost is returned by a device that cannot accept uploads.
var ErrDeviceLost = errors.New("device not ready")

// Device is the GPU the caches upload to.
type Device interface {
	Ready() bool
	UploadTexture(img *image.RGBA) (uint32, error)
	DeleteTexture(id uint32)
	UploadGeometry(g *Geometry) (uint32, error)
	DeleteGeometry(id uint32)
	SetViewport(width, height int32)
}

// HeadlessDevice is an in-memory Device. It hands out ids and tracks which
// are live, which is all the resource layer needs outside a window.
type HeadlessDevice struct {
	mu         sync.Mutex
	ready      bool
	nextID     uint32
	textures   map[uint32]image.Point
	geometries map[uint32]int
	viewport   [2]int32
	failNext   error
}

func NewHeadlessDevice() *HeadlessDevice {
	return &HeadlessDevice{
		ready:      true,
		textures:   make(map[uint32]image.Point),
		geometries: make(map[uint32]int),
	}
}

func (d *HeadlessDevice) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// SetReady simulates losing or regaining the context.
func (d *HeadlessDevice) SetReady(ready bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = ready
}

// FailNextUpload makes the next upload return err.
func (d *HeadlessDevice) FailNextUpload(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = err
}

func (d *HeadlessDevice) upload() (uint32, error) {
	if !d.ready {
		return 0, ErrDeviceLost
	}
	if err := d.failNext; err != nil {
		d.failNext = nil
		return 0, err
	}
	d.nextID++
	return d.nextID, nil
}

func (d *HeadlessDevice) UploadTexture(img *image.RGBA) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := d.upload()
	if err != nil {
		return 0, err
	}
	d.textures[id] = img.Rect.Size()
	return id, nil
}

func (d *HeadlessDevice) DeleteTexture(id uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

func (d *HeadlessDevice) UploadGeometry(g *Geometry) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := d.upload()
	if err != nil {
		return 0, err
	}
	d.geometries[id] = g.VertexCount()
	return id, nil
}

func (d *HeadlessDevice) DeleteGeometry(id uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.geometries, id)
}

func (d *HeadlessDevice) SetViewport(width, height int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = [2]int32{width, height}
}

func (d *HeadlessDevice) Viewport() (int32, int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport[0], d.viewport[1]
}

func (d *HeadlessDevice) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

func (d *HeadlessDevice) LiveGeometries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.geometries)
}

// HasTexture reports whether id is live on the device.
func (d *HeadlessDevice) HasTexture(id uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.textures[id]
	return ok
}
