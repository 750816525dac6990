// softpipe - Terminal glTF viewer on a software rasterization pipeline.
//
// Controls:
//
//	Mouse drag  - Orbit camera (yaw/pitch)
//	Scroll      - Zoom in/out
//	W/S         - Pitch up/down
//	A/D         - Yaw left/right
//	Space       - Apply random impulse
//	R           - Reset view
//	T           - Toggle textures on/off
//	C           - Toggle backface culling
//	P           - Save frame as PNG
//	+/-         - Adjust zoom
//	Esc         - Quit
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/immiao/softpipe/pkg/log"
	"github.com/immiao/softpipe/pkg/math3d"
	"github.com/immiao/softpipe/pkg/render"
	"github.com/immiao/softpipe/pkg/scene"
)

var (
	targetFPS = flag.Int("fps", 60, "Target FPS")
	bgColor   = flag.String("bg", "30,30,40", "Background color (R,G,B)")
	workers   = flag.Int("workers", 0, "Worker goroutines (0 = GOMAXPROCS)")
	culling   = flag.Bool("cull", false, "Enable backface culling")
	verbose   = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "softpipe - Terminal glTF viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: softpipe [options] <model.glb|model.gltf>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  Mouse drag  - Orbit camera\n")
		fmt.Fprintf(os.Stderr, "  Scroll      - Zoom in/out\n")
		fmt.Fprintf(os.Stderr, "  W/S/A/D     - Pitch and yaw\n")
		fmt.Fprintf(os.Stderr, "  Space       - Random spin\n")
		fmt.Fprintf(os.Stderr, "  R           - Reset view\n")
		fmt.Fprintf(os.Stderr, "  T           - Toggle textures\n")
		fmt.Fprintf(os.Stderr, "  C           - Toggle backface culling\n")
		fmt.Fprintf(os.Stderr, "  P           - Save frame as PNG\n")
		fmt.Fprintf(os.Stderr, "  Esc         - Quit\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if *verbose {
		log.SetLevel(log.Debug, "")
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// OrbitAxis tracks position and velocity for one orbit angle with
// spring decay.
type OrbitAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64 // internal spring velocity (animates Velocity toward 0)
}

// NewOrbitAxis creates an axis with a harmonica spring for smooth
// velocity decay.
func NewOrbitAxis(fps int) OrbitAxis {
	return OrbitAxis{
		// Frequency 4.0 = moderate speed, damping 1.0 = critically damped
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Update applies velocity to position and decays velocity toward 0.
func (a *OrbitAxis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// OrbitState holds the camera orbit angles with spring physics.
type OrbitState struct {
	Pitch, Yaw OrbitAxis
	fps        int
}

func NewOrbitState(fps int) *OrbitState {
	return &OrbitState{
		Pitch: NewOrbitAxis(fps),
		Yaw:   NewOrbitAxis(fps),
		fps:   fps,
	}
}

func (o *OrbitState) Update() {
	o.Pitch.Update()
	o.Yaw.Update()

	// Clamp pitch so the camera never flips over the poles
	const maxPitch = math.Pi/2 - 0.05
	if o.Pitch.Position > maxPitch {
		o.Pitch.Position = maxPitch
		o.Pitch.Velocity = 0
	}
	if o.Pitch.Position < -maxPitch {
		o.Pitch.Position = -maxPitch
		o.Pitch.Velocity = 0
	}
}

func (o *OrbitState) ApplyImpulse(pitch, yaw float64) {
	o.Pitch.Velocity += pitch
	o.Yaw.Velocity += yaw
}

func (o *OrbitState) Reset() {
	o.Pitch = NewOrbitAxis(o.fps)
	o.Yaw = NewOrbitAxis(o.fps)
}

// normalizeScene rescales the scene to fit a 2-unit box centered at the
// origin by folding the correction into every batch's world matrix.
func normalizeScene(scn *scene.Scene) {
	center := scn.Center()
	size := scn.Size()
	maxDim := math.Max(size.X, math.Max(size.Y, size.Z))
	if maxDim <= 0 {
		return
	}

	norm := math3d.ScaleUniform(2 / maxDim).Mul(math3d.Translate(center.Negate()))
	for _, b := range scn.Batches {
		b.World = norm.Mul(b.World)
	}
}

func run(modelPath string) error {
	var bgR, bgG, bgB uint8 = 30, 30, 40
	fmt.Sscanf(*bgColor, "%d,%d,%d", &bgR, &bgG, &bgB)

	scn, err := scene.LoadGLB(modelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	normalizeScene(scn)

	fmt.Printf("Loaded: %s (%d vertices, %d triangles, %d batches)\n",
		filepath.Base(modelPath), scn.VertexCount(), scn.TriangleCount(), len(scn.Batches))

	// Create terminal
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Enable mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // SGR extended mouse mode

	termRenderer := render.NewTerminalRenderer(term, width, height)
	fbWidth, fbHeight := termRenderer.FramebufferSize()

	pipeline := render.NewPipeline(
		render.WithWorkers(*workers),
		render.WithBackfaceCulling(*culling),
		render.WithClearColor(render.RGB(bgR, bgG, bgB)),
		render.WithLightPosition(math3d.V3(3, 3, 6)),
	)
	if err := pipeline.Init(fbWidth, fbHeight); err != nil {
		return err
	}
	pipeline.SetScene(scn)

	camera := render.NewCamera()
	camera.SetAspectRatio(float64(fbWidth) / float64(fbHeight))
	camera.SetFOV(math.Pi / 3)
	camera.SetClipPlanes(0.1, 100)

	orbit := NewOrbitState(*targetFPS)
	cameraDist := 5.0
	texturesOn := true
	cullOn := *culling

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	var mouseDown bool
	var lastMouseX, lastMouseY int
	var savePNG bool

	go func() {
		for ev := range term.Events() {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				width, height = ev.Width, ev.Height
				term.Erase()
				term.Resize(width, height)
				termRenderer = render.NewTerminalRenderer(term, width, height)
				fbWidth, fbHeight = termRenderer.FramebufferSize()
				if err := pipeline.Init(fbWidth, fbHeight); err != nil {
					continue
				}
				camera.SetAspectRatio(float64(fbWidth) / float64(fbHeight))

			case uv.KeyPressEvent:
				switch {
				case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
					cancel()
					return
				case ev.MatchString("r"):
					orbit.Reset()
					cameraDist = 5.0
				case ev.MatchString("w", "up"):
					orbit.ApplyImpulse(0.05, 0)
				case ev.MatchString("s", "down"):
					orbit.ApplyImpulse(-0.05, 0)
				case ev.MatchString("a", "left"):
					orbit.ApplyImpulse(0, -0.05)
				case ev.MatchString("d", "right"):
					orbit.ApplyImpulse(0, 0.05)
				case ev.MatchString("space"):
					orbit.ApplyImpulse(
						(rand.Float64()-0.5)*0.5,
						(rand.Float64()-0.5)*0.5,
					)
				case ev.MatchString("+", "="):
					cameraDist = math.Max(1, cameraDist-0.5)
				case ev.MatchString("-", "_"):
					cameraDist = math.Min(20, cameraDist+0.5)
				case ev.MatchString("t"):
					texturesOn = !texturesOn
					pipeline.SetTexturesEnabled(texturesOn)
				case ev.MatchString("c"):
					cullOn = !cullOn
					pipeline.SetBackfaceCulling(cullOn)
				case ev.MatchString("p"):
					savePNG = true
				}

			case uv.MouseClickEvent:
				mouseDown = true
				lastMouseX, lastMouseY = ev.X, ev.Y

			case uv.MouseReleaseEvent:
				mouseDown = false

			case uv.MouseMotionEvent:
				if mouseDown {
					dx := ev.X - lastMouseX
					dy := ev.Y - lastMouseY
					orbit.ApplyImpulse(float64(dy)*0.01, float64(dx)*0.01)
					lastMouseX, lastMouseY = ev.X, ev.Y
				}

			case uv.MouseWheelEvent:
				switch ev.Button {
				case uv.MouseWheelUp:
					cameraDist = math.Max(1, cameraDist-0.5)
				case uv.MouseWheelDown:
					cameraDist = math.Min(20, cameraDist+0.5)
				}
			}
		}
	}()

	targetDuration := time.Second / time.Duration(*targetFPS)

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}

	frame := 0
	for {
		select {
		case <-ctx.Done():
			cleanup()
			return nil
		default:
		}

		start := time.Now()

		orbit.Update()

		// Orbit the camera around the origin
		eye := math3d.RotateY(orbit.Yaw.Position).
			Mul(math3d.RotateX(orbit.Pitch.Position)).
			MulDir(math3d.V3(0, 0, cameraDist))
		camera.SetPosition(eye)
		camera.LookAt(math3d.Zero3())

		if err := pipeline.SubmitFrame(camera.ProjectionMatrix(), camera.ViewMatrix()); err != nil {
			cleanup()
			return fmt.Errorf("submit frame: %w", err)
		}

		if savePNG {
			savePNG = false
			name := fmt.Sprintf("softpipe-%d.png", frame)
			if err := pipeline.Framebuffer().SavePNG(name); err == nil {
				fmt.Fprintf(os.Stderr, "saved %s\n", name)
			}
		}

		termRenderer.Render(pipeline.Framebuffer())
		if err := termRenderer.Flush(); err != nil {
			cleanup()
			return fmt.Errorf("flush: %w", err)
		}
		frame++

		elapsed := time.Since(start)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
