// Package viz draws running cloth scenarios in the terminal.
//
// Particles and structural edges are rasterized onto a braille [Canvas],
// either as a side view through a [Viewport] or through an orbiting
// [Camera]. [RunLive] opens one scenario; [RunInteractive] first offers a
// scenario and preset picker.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Rebuild the scenario
//	V     - Toggle side and orbit view
//	W     - Toggle wind
//	C     - Toggle collision
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
//	[]    - Step through history
//
// GIF recordings are written to clothsim.gif in the working directory.
package viz
