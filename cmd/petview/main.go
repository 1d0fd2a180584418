package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/petsprite/assets"
	"github.com/milk9111/petsprite/atlas"
	"github.com/milk9111/petsprite/channel"
	"github.com/milk9111/petsprite/config"
	"github.com/milk9111/petsprite/pet"
	"github.com/milk9111/petsprite/render"
)

func main() {
	defaults, err := config.LoadViewer()
	if err != nil {
		config.Exitf("petview: %v", err)
	}

	atlasPath := flag.String("atlas", defaults.Atlas, "atlas descriptor (.json or .yaml); embedded capybara atlas when empty")
	sheet := flag.String("sheet", defaults.Sheet, "sprite sheet path or http(s) URL; embedded sheet when empty")
	frames := flag.String("frames", "", "glob of per-frame images used instead of a packed sheet")
	serverURL := flag.String("server", defaults.ServerURL, "relay websocket URL, e.g. ws://localhost:4000/ws")
	redisAddr := flag.String("redis", defaults.RedisAddr, "redis address for a shared bus")
	group := flag.String("group", defaults.Group, "group (user id) to join")
	scale := flag.Float64("scale", defaults.Scale, "sprite scale")
	watch := flag.Bool("watch", false, "reload the atlas descriptor when it changes on disk")
	debug := flag.Bool("debug", false, "show debug overlay")
	flag.Parse()

	if *watch && *atlasPath == "" {
		config.Exitf("petview: -watch needs -atlas")
	}
	if *scale <= 0 {
		config.Exitf("petview: scale must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	desc, err := loadDescriptor(*atlasPath)
	if err != nil {
		log.Fatal(err)
	}

	var source render.FrameSource
	if *frames != "" {
		dir, pattern := filepath.Split(*frames)
		if dir == "" {
			dir = "."
		}
		files, err := render.LoadFrameFiles(os.DirFS(dir), pattern)
		if err != nil {
			log.Fatal(err)
		}
		source = files
	} else {
		location := *sheet
		if location == "" {
			location = assets.AtlasSheet
		}
		source = render.LoadSheet(ctx, location)
	}

	var placeholder *ebiten.Image
	if img, err := assets.LoadImage(assets.Placeholder); err == nil {
		placeholder = ebiten.NewImageFromImage(img)
	} else {
		log.Printf("petview: placeholder unavailable: %v", err)
	}

	var watcher *atlas.Watcher
	if *watch {
		watcher, err = atlas.NewWatcher(*atlasPath)
		if err != nil {
			log.Fatal(err)
		}
		defer watcher.Close()
	}

	bus, closeBus := newBus(ctx, *serverURL, *redisAddr)
	defer closeBus()

	character := pet.New(desc, source, placeholder)
	if err := character.Mount(ctx, bus, *group); err != nil {
		closeBus()
		config.Exitf("petview: mount: %v", err)
	}
	defer character.Unmount()

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("petsprite - " + channel.NormalizeGroup(*group))

	game := NewGame(ctx, character, watcher, *scale, *debug)
	if err := ebiten.RunGame(game); err != nil {
		log.Printf("petview: %v", err)
	}
}

func loadDescriptor(path string) (*atlas.Descriptor, error) {
	if path == "" {
		return atlas.LoadFS(assets.FS(), assets.AtlasDescriptor)
	}
	return atlas.Load(path)
}

// newBus picks the relay, then redis, then an in-process hub. The hub keeps
// the viewer usable offline: buttons still drive the character.
func newBus(ctx context.Context, serverURL, redisAddr string) (channel.Bus, func()) {
	if serverURL = strings.TrimSpace(serverURL); serverURL != "" {
		client := channel.NewWSClient(serverURL)
		log.Printf("petview: using relay url=%s", serverURL)
		return client, func() { _ = client.Close() }
	}
	if redisAddr = strings.TrimSpace(redisAddr); redisAddr != "" {
		bus := channel.NewRedisBus(redisAddr, "", 0, "")
		if err := bus.Ping(ctx); err != nil {
			log.Printf("petview: redis unavailable addr=%s err=%v, falling back to local bus", redisAddr, err)
			_ = bus.Close()
		} else {
			log.Printf("petview: using redis addr=%s", redisAddr)
			return bus, func() { _ = bus.Close() }
		}
	}
	hub := channel.NewHub()
	return hub, func() { _ = hub.Close() }
}
