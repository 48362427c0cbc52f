package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"geoassembler/internal/synth"
	"geoassembler/pkg/calibration"
	"geoassembler/pkg/config"
	"geoassembler/pkg/crystfel"
	"geoassembler/pkg/geometry"
	"geoassembler/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "geoassembler.yaml", "Path to YAML configuration file")
	geomFile := flag.String("geometry", "", "Geometry description file to start from (default: idealized layout from quad positions)")
	output := flag.String("output", "", "Path to write the adjusted geometry to (default: from config)")
	preview := flag.String("preview", "", "Path to save an assembled preview image (JPEG)")
	nudges := flag.String("nudge", "", "Comma-separated quadrant nudges to apply, e.g. 1:u,1:l,3:d")
	pattern := flag.String("pattern", "markers", "Synthetic frame pattern: markers, gradient or rings")
	withMargin := flag.Bool("margin", false, "Assemble onto an enlarged canvas with the configured margin")
	flag.Parse()

	// Load configuration (defaults when the file is absent)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *output == "" {
		*output = cfg.Output.GeometryFile
	}

	fmt.Println("================================")
	fmt.Println("GEOASSEMBLER - segmented detector geometry calibration")
	fmt.Println("================================")

	// Build the starting geometry: from a file when given, otherwise the
	// idealized layout from the configured quadrant positions.
	var det *geometry.Detector
	if *geomFile != "" {
		det, err = crystfel.ParseFile(*geomFile)
		if err != nil {
			log.Fatalf("Failed to read geometry file: %v", err)
		}
		fmt.Printf("Loaded geometry from %s\n", *geomFile)
	} else {
		det, err = geometry.FromQuadPositions(cfg.Detector.QuadPositions,
			cfg.Detector.AsicGap, cfg.Detector.PanelGap)
		if err != nil {
			log.Fatalf("Failed to build idealized geometry: %v", err)
		}
		fmt.Println("Built idealized geometry from quadrant positions")
	}

	header := calibration.HeaderText(cfg.Calibration.Clen, cfg.Calibration.PhotonEnergy)
	session := calibration.NewSession(det, header)
	session.SetStep(cfg.Calibration.StepSize)

	// Apply any requested quadrant nudges before assembling
	if *nudges != "" {
		for _, spec := range strings.Split(*nudges, ",") {
			quad, dir, err := parseNudge(spec)
			if err != nil {
				log.Fatalf("Bad nudge %q: %v", spec, err)
			}
			if err := session.Nudge(quad, dir); err != nil {
				log.Fatalf("Nudge %q failed: %v", spec, err)
			}
		}
		fmt.Printf("Applied %d quadrant moves\n", session.Moves())
	}

	// Assemble a synthetic frame with the current geometry
	var stack *geometry.FrameStack
	switch *pattern {
	case "markers":
		stack = synth.MarkerStack(1)
	case "gradient":
		stack = synth.GradientStack(1)
	case "rings":
		stack = synth.RingStack(det, 1, []float64{150, 300, 450}, 2.5)
	default:
		log.Fatalf("Unknown pattern %q (want markers, gradient or rings)", *pattern)
	}

	var assembled *geometry.Assembled
	var centre geometry.Centre
	if *withMargin {
		assembled, centre, err = session.AssembleWithMargin(stack, cfg.Calibration.CanvasMargin)
	} else {
		assembled, centre, err = session.Assemble(stack)
	}
	if err != nil {
		log.Fatalf("Assembly failed: %v", err)
	}

	h, w := assembled.Dims()
	valid, minV, maxV, mean := assembled.FrameStats(0)
	fmt.Printf("\nAssembled canvas: %dx%d, centre (%d, %d)\n", h, w, centre.Y, centre.X)
	fmt.Printf("Covered pixels: %d of %d (%.1f%%)\n", valid, h*w, 100*float64(valid)/float64(h*w))
	fmt.Printf("Intensity range: [%g, %g], mean %g\n", minV, maxV, mean)

	for quad := 1; quad <= geometry.NumQuadrants; quad++ {
		corner, qw, qh, err := session.QuadOutline(quad)
		if err != nil {
			log.Fatalf("Quad outline failed: %v", err)
		}
		offset, _ := session.Offset(quad)
		fmt.Printf("Quadrant %d: outline corner (%d, %d), %dx%d, session offset (%d, %d)\n",
			quad, corner[0], corner[1], qw, qh, offset[0], offset[1])
	}

	// Save a preview image if requested
	previewPath := *preview
	if previewPath == "" {
		previewPath = cfg.Output.PreviewFile
	}
	if previewPath != "" {
		img, err := visualization.Render(assembled, 0)
		if err != nil {
			log.Fatalf("Preview rendering failed: %v", err)
		}
		if err := visualization.Save(img, previewPath); err != nil {
			log.Fatalf("Failed to save preview: %v", err)
		}
		fmt.Printf("Preview image saved to: %s\n", previewPath)
	}

	// Persist the (possibly adjusted) geometry
	if err := session.Save(*output); err != nil {
		log.Fatalf("Failed to write geometry file: %v", err)
	}
	fmt.Printf("\nGeometry description saved to: %s\n", *output)
}

// parseNudge splits a "quad:direction" spec like "1:u".
func parseNudge(spec string) (int, calibration.Direction, error) {
	parts := strings.SplitN(strings.TrimSpace(spec), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want quad:direction")
	}
	var quad int
	if _, err := fmt.Sscanf(parts[0], "%d", &quad); err != nil {
		return 0, 0, fmt.Errorf("bad quadrant %q", parts[0])
	}
	dir, err := calibration.ParseDirection(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return quad, dir, nil
}
