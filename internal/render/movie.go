package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/icza/mjpeg"
	xdraw "golang.org/x/image/draw"

	"github.com/parsa83KH/virus/internal/sim"
)

// frameScale upsamples the arena so agents stay visible in the replay.
const frameScale = 2

// agentColors are RGBA equivalents of the chart palette.
var agentColors = map[sim.Status]color.RGBA{
	sim.Healthy:    {0x2e, 0xcc, 0x71, 0xff},
	sim.Infected:   {0xe6, 0x7e, 0x22, 0xff},
	sim.Sick:       {0xe7, 0x4e, 0x3c, 0xff},
	sim.Recovered:  {0x34, 0x98, 0xdb, 0xff},
	sim.Vaccinated: {0x9b, 0x59, 0xb6, 0xff},
	sim.Dead:       {0x7f, 0x8c, 0x8d, 0xff},
}

var arenaBackground = color.RGBA{0x10, 0x14, 0x1c, 0xff}

// FrameRecorder accumulates arena snapshots and writes them out as an MJPEG
// replay of the run.
type FrameRecorder struct {
	writer      mjpeg.AviWriter
	arenaW      int
	arenaH      int
	outW, outH  int
	buf         bytes.Buffer
	jpegOpts    *jpeg.Options
	framesAdded int
}

// NewFrameRecorder opens an AVI file sized to the arena at the given frame
// rate.
func NewFrameRecorder(path string, arenaW, arenaH float64, fps int) (*FrameRecorder, error) {
	if arenaW <= 0 || arenaH <= 0 {
		return nil, fmt.Errorf("arena dimensions must be positive, got %gx%g", arenaW, arenaH)
	}
	if fps <= 0 {
		fps = 30
	}

	w := int(arenaW) * frameScale
	h := int(arenaH) * frameScale
	writer, err := mjpeg.New(path, int32(w), int32(h), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("create replay writer: %w", err)
	}

	return &FrameRecorder{
		writer:   writer,
		arenaW:   int(arenaW),
		arenaH:   int(arenaH),
		outW:     w,
		outH:     h,
		jpegOpts: &jpeg.Options{Quality: 75},
	}, nil
}

// AddFrame draws one agent snapshot and appends it to the replay.
func (r *FrameRecorder) AddFrame(snapshot []sim.AgentView) error {
	img := image.NewRGBA(image.Rect(0, 0, r.arenaW, r.arenaH))
	for y := 0; y < r.arenaH; y++ {
		for x := 0; x < r.arenaW; x++ {
			img.SetRGBA(x, y, arenaBackground)
		}
	}

	for _, a := range snapshot {
		r.drawAgent(img, a)
	}

	// Upscale so individual agents remain legible.
	out := image.NewRGBA(image.Rect(0, 0, r.outW, r.outH))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	r.buf.Reset()
	if err := jpeg.Encode(&r.buf, out, r.jpegOpts); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := r.writer.AddFrame(r.buf.Bytes()); err != nil {
		return fmt.Errorf("add frame: %w", err)
	}
	r.framesAdded++
	return nil
}

// drawAgent paints a small filled square at the agent's position.
func (r *FrameRecorder) drawAgent(img *image.RGBA, a sim.AgentView) {
	c, ok := agentColors[a.Status]
	if !ok {
		return
	}
	cx, cy := int(a.X), int(a.Y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x >= r.arenaW || y >= r.arenaH {
				continue
			}
			img.SetRGBA(x, y, c)
		}
	}
}

// Frames returns how many frames were recorded.
func (r *FrameRecorder) Frames() int { return r.framesAdded }

// Close finalizes the AVI file.
func (r *FrameRecorder) Close() error {
	return r.writer.Close()
}
