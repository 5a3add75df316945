package particle

import "github.com/go-gl/mathgl/mgl32"

// Buffers is the ping-pong arena for next positions. A pass reads Front,
// writes Back and the owner calls Swap once the pass has completed.
type Buffers struct {
	buf   [2][]mgl32.Vec3
	front int
}

func (b *Buffers) Front() []mgl32.Vec3 { return b.buf[b.front] }

func (b *Buffers) Back() []mgl32.Vec3 { return b.buf[1-b.front] }

func (b *Buffers) Swap() { b.front = 1 - b.front }

// Index is the current front buffer, exposed for tests.
func (b *Buffers) Index() int { return b.front }

func (b *Buffers) resize(n int) {
	for i := range b.buf {
		for len(b.buf[i]) < n {
			b.buf[i] = append(b.buf[i], mgl32.Vec3{})
		}
	}
}

// Set writes both buffers so a value survives the next swap.
func (b *Buffers) Set(i int, v mgl32.Vec3) {
	b.buf[0][i] = v
	b.buf[1][i] = v
}
