package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"golang.org/x/image/bmp"
	"golang.org/x/term"

	"github.com/dskellund/gbacore/internal/emu"
	"github.com/dskellund/gbacore/internal/ui"
)

// CLIFlags holds every flag this binary accepts, parsed once up front
// rather than read piecemeal from the flag package at each use site.
type CLIFlags struct {
	ROMPath    string
	BIOSPath   string
	SkipBIOS   bool
	Scale      int
	Title      string
	Fullscreen bool
	Mute       bool
	Trace      bool
	Verbose    bool

	Headless   bool
	Frames     int
	PNGOut     string
	Expect     string
	Screenshot string
	DumpAudio  string
	SaveState  string
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.BIOSPath, "bios", "", "path to a 16 KiB GBA BIOS dump (optional; HLE BIOS used if absent)")
	flag.BoolVar(&f.SkipBIOS, "skip-bios", false, "jump straight to the cartridge entry point, bypassing BIOS boot")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbaemu", "window title")
	flag.BoolVar(&f.Fullscreen, "fullscreen", false, "start in fullscreen")
	flag.BoolVar(&f.Mute, "mute", false, "mute audio output")
	flag.BoolVar(&f.Trace, "trace", false, "accepted but has no effect: no instruction is logged")
	flag.BoolVar(&f.Verbose, "verbose", false, "accepted but has no effect: no guest-misbehavior warning is logged")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path (headless)")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex, headless)")
	flag.StringVar(&f.Screenshot, "screenshot", "", "dump one BMP frame to this path shortly after boot")
	flag.StringVar(&f.DumpAudio, "dump-audio", "", "write the APU boundary's stereo stream to a WAV file")
	flag.StringVar(&f.SaveState, "savestate", "", "load this save state on start (windowed F5/F9 quicksaves use ROM_PATH.savestate)")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if flag.NArg() < 1 {
		log.Fatal("usage: gbaemu [flags] ROM_PATH")
	}
	f.ROMPath = flag.Arg(0)

	emuCfg := emu.Config{
		Trace:    f.Trace,
		Verbose:  f.Verbose,
		SkipBIOS: f.SkipBIOS,
		LimitFPS: !f.Headless,
	}
	m := emu.New(emuCfg)

	if f.BIOSPath != "" {
		bios, err := os.ReadFile(f.BIOSPath)
		if err != nil {
			log.Fatalf("read bios: %v", err)
		}
		if err := m.LoadBIOS(bios); err != nil {
			log.Fatalf("load bios: %v", err)
		}
	}
	if err := m.LoadROMFile(f.ROMPath); err != nil {
		log.Fatalf("load rom: %v", err)
	}
	printROMBanner(m)

	if f.SaveState != "" {
		if err := m.LoadStateFromFile(f.SaveState); err != nil {
			log.Fatalf("load savestate: %v", err)
		}
	}

	if f.Headless {
		if err := runHeadless(m, f); err != nil {
			log.Fatal(err)
		}
		if f.DumpAudio != "" {
			if err := writeWAV(f.DumpAudio, nil); err != nil {
				log.Fatalf("dump audio: %v", err)
			}
		}
		return
	}

	uiCfg := ui.Config{
		Title:          f.Title,
		Scale:          f.Scale,
		Fullscreen:     f.Fullscreen,
		Mute:           f.Mute,
		ScreenshotPath: f.Screenshot,
	}
	app := ui.NewApp(uiCfg, m)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
	if f.DumpAudio != "" {
		if err := writeWAV(f.DumpAudio, nil); err != nil {
			log.Printf("dump audio: %v", err)
		}
	}
}

// printROMBanner logs the parsed cartridge header, colorized when stdout is
// a real terminal (checked via golang.org/x/term) and plain text otherwise
// — redirecting to a file or a CI log shouldn't end up full of escape
// codes.
func printROMBanner(m *emu.Machine) {
	title := m.ROMTitle()
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("\x1b[1;32mROM:\x1b[0m %q\n", title)
	} else {
		log.Printf("ROM: %q", title)
	}
}

func runHeadless(m *emu.Machine, f CLIFlags) error {
	frames := f.Frames
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	var fb []uint16
	for i := 0; i < frames; i++ {
		fb = m.RunUntilFrame()
	}
	dur := time.Since(start)

	rgba := bgr555ToRGBA(fb, m.Width(), m.Height())
	crc := crc32.ChecksumIEEE(rgba)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if f.PNGOut != "" {
		if err := saveFramePNG(rgba, m.Width(), m.Height(), f.PNGOut); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", f.PNGOut)
	}
	if f.Screenshot != "" {
		if err := saveFrameBMP(rgba, m.Width(), m.Height(), f.Screenshot); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
		log.Printf("wrote %s", f.Screenshot)
	}
	if f.Expect != "" {
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	return png.Encode(fh, img)
}

func saveFrameBMP(pix []byte, w, h int, path string) error {
	img := &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	return bmp.Encode(fh, img)
}

func bgr555ToRGBA(fb []uint16, w, h int) []byte {
	out := make([]byte, w*h*4)
	for i, px := range fb {
		out[i*4+0] = uint8(px&0x1F) << 3
		out[i*4+1] = uint8((px>>5)&0x1F) << 3
		out[i*4+2] = uint8((px>>10)&0x1F) << 3
		out[i*4+3] = 0xFF
	}
	return out
}

// writeWAV encodes samples (interleaved stereo, [-1,1] float32) as a 16-bit
// PCM WAV file using go-audio/wav + go-audio/audio, the pair
// SPEC_FULL.md's domain stack names for this flag. Both call sites pass
// nil samples (there is no APU producing any), so the file written is a
// valid WAV with no sample data.
func writeWAV(path string, samples []float32) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	enc := wav.NewEncoder(fh, 48000, 16, 2, 1)
	defer enc.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 48000},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}
