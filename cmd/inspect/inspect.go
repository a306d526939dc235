// Command inspect is a terminal dashboard for a running virtual-webcam. It
// polls the admin API for sessions, control values and the latest frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rivo/tview"
	"golang.org/x/image/draw"

	"github.com/kevmo314/usbip-uvc/internal/admin"
	"github.com/kevmo314/usbip-uvc/pkg/controls"
)

type Display struct {
	frame atomic.Value
}

func (g *Display) Update() error {
	return nil
}

func (g *Display) Draw(screen *ebiten.Image) {
	screen.DrawImage(g.frame.Load().(*ebiten.Image), &ebiten.DrawImageOptions{})
}

func (g *Display) Layout(outsideWidth, outsideHeight int) (int, int) {
	frame := g.frame.Load().(*ebiten.Image)
	return frame.Bounds().Dx(), frame.Bounds().Dy()
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "admin address of the virtual webcam")
	interval := flag.Duration("interval", 500*time.Millisecond, "polling interval")
	render := flag.Bool("render", false, "render the frames to a window (higher performance but requires a display)")
	flag.Parse()

	c := newClient(*addr)
	app := tview.NewApplication()

	cameraInfo := tview.NewTextView()
	cameraInfo.SetBorder(true).SetTitle("Camera")

	sessions := tview.NewList()
	sessions.SetBorder(true).SetTitle("Sessions")

	controlTable := tview.NewTable().SetFixed(1, 0)
	controlTable.SetBorder(true).SetTitle("Controls")

	preview := tview.NewImage()
	preview.SetColors(256).SetDithering(tview.DitheringNone).SetBorder(true).SetTitle("Preview")

	logText := tview.NewTextView()
	logText.SetMaxLines(10).SetBorder(true).SetTitle("Log")
	log.SetOutput(logText)

	var (
		mu       sync.Mutex
		selected string
		ids      []string
	)
	sessions.SetChangedFunc(func(index int, _, _ string, _ rune) {
		mu.Lock()
		defer mu.Unlock()
		if index >= 0 && index < len(ids) {
			selected = ids[index]
		}
	})

	display := &Display{}
	var displayStarted atomic.Bool

	poll := func(ctx context.Context) {
		cam, err := c.camera(ctx)
		if err != nil {
			log.Printf("camera: %s", err)
			return
		}
		ss, err := c.sessions(ctx)
		if err != nil {
			log.Printf("sessions: %s", err)
			return
		}
		mu.Lock()
		ids = ids[:0]
		for _, s := range ss {
			ids = append(ids, s.ID)
		}
		if len(ids) > 0 && !contains(ids, selected) {
			selected = ids[0]
		}
		current := selected
		mu.Unlock()

		var cs []controls.ControlSnapshot
		if current != "" {
			if cs, err = c.controls(ctx, current); err != nil {
				log.Printf("controls: %s", err)
			}
		}

		img, err := c.frame(ctx)
		if err != nil {
			log.Printf("frame: %s", err)
		}
		if img != nil && *render {
			display.frame.Store(ebiten.NewImageFromImage(img))
			if displayStarted.CompareAndSwap(false, true) {
				go func() {
					ebiten.SetWindowTitle(fmt.Sprintf("virtual webcam %dx%d %s", cam.Width, cam.Height, cam.Format))
					if err := ebiten.RunGame(display); err != nil {
						log.Printf("ebiten error: %s", err)
					}
				}()
			}
		}

		app.QueueUpdateDraw(func() {
			cameraInfo.SetText(cameraText(cam))
			fillSessions(sessions, ss, current)
			fillControls(controlTable, cs)
			if img != nil && !*render {
				w := 64
				h := img.Bounds().Dy() * w / img.Bounds().Dx()
				preview.SetImage(resize(img, w, h))
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for {
			reqCtx, done := context.WithTimeout(ctx, *interval*4)
			poll(reqCtx)
			done()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(cameraInfo, 8, 0, false).
		AddItem(sessions, 0, 1, true)
	flex := tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(controlTable, 0, 2, false)
	if !*render {
		flex.AddItem(preview, 0, 2, false)
	}

	if err := app.SetRoot(tview.NewFlex().SetDirection(tview.FlexRow).AddItem(flex, 0, 1, true).AddItem(logText, 10, 0, false), true).Run(); err != nil {
		panic(err)
	}
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}

func cameraText(cam *admin.Camera) string {
	age := "never"
	if !cam.LatestFrame.IsZero() {
		age = time.Since(cam.LatestFrame).Truncate(time.Millisecond).String() + " ago"
	}
	return fmt.Sprintf("%04x:%04x\n%s %dx%d @ %d fps\nframe %d bytes\npublished %d, dropped %d\nlatest %s",
		cam.VendorID, cam.ProductID, cam.Format, cam.Width, cam.Height, cam.FPS,
		cam.FrameLength, cam.Frames.Published, cam.Frames.Dropped, age)
}

func fillSessions(list *tview.List, ss []admin.Session, selected string) {
	list.Clear()
	for i, s := range ss {
		secondary := fmt.Sprintf("bus %s, %d submits, %d unlinks", s.BusID, s.Submits, s.Unlinks)
		if d := s.Device; d != nil {
			secondary += fmt.Sprintf(", %d frames, %d drops", d.Frames.Frames, d.Frames.Drops)
			if d.Streaming {
				secondary += ", streaming"
			}
		}
		list.AddItem(fmt.Sprintf("%.8s %s (%s)", s.ID, s.Remote, s.State), secondary, 0, nil)
		if s.ID == selected {
			list.SetCurrentItem(i)
		}
	}
}

var controlColumns = []string{"cur", "min", "max", "res", "def", "info"}

func fillControls(table *tview.Table, cs []controls.ControlSnapshot) {
	table.Clear()
	table.SetCell(0, 0, tview.NewTableCell("control").SetTextColor(tcell.ColorYellow))
	for i, col := range controlColumns {
		table.SetCell(0, i+1, tview.NewTableCell(col).SetTextColor(tcell.ColorYellow))
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
	for r, ctl := range cs {
		table.SetCell(r+1, 0, tview.NewTableCell(ctl.Name))
		for i, col := range controlColumns {
			v := ctl.Attributes[col]
			if len(v) > 40 {
				v = v[:37] + "..."
			}
			table.SetCell(r+1, i+1, tview.NewTableCell(v))
		}
	}
}

func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
