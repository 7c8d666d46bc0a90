// Command geojson2tour converts a GeoJSON FeatureCollection of points into
// a tour definition consumable by the tour library importer.
//
// Each Point feature becomes one waypoint, ordered by the numeric
// "sequence" property when present, otherwise by file order. Recognized
// properties: name, media_ref (required), subtitle_file, radius_m.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"cicerone/pkg/model"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .geojson file")
	outputPath := flag.String("output", "", "Path to output tour .json file")
	tourID := flag.String("id", "", "Tour ID (required)")
	title := flag.String("title", "", "Tour title (defaults to the tour ID)")
	language := flag.String("language", "", "Tour language tag (e.g. en, de)")
	radius := flag.Float64("radius", 30, "Default trigger radius in meters")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" || *tourID == "" {
		flag.Usage()
		log.Fatal("Input, output and id are required")
	}

	if err := run(*inputPath, *outputPath, *tourID, *title, *language, *radius); err != nil {
		log.Fatal(err)
	}
}

func run(inputPath, outputPath, tourID, title, language string, defaultRadius float64) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	t, err := buildTour(fc, tourID, title, language, defaultRadius)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tour: %w", err)
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Wrote %s (%d waypoints)\n", outputPath, len(t.Waypoints))
	return nil
}

type orderedFeature struct {
	feature  *geojson.Feature
	sequence float64
	fileIdx  int
}

func buildTour(fc *geojson.FeatureCollection, tourID, title, language string, defaultRadius float64) (*model.Tour, error) {
	var points []orderedFeature
	for i, f := range fc.Features {
		if _, ok := f.Geometry.(orb.Point); !ok {
			log.Printf("Skipping non-point geometry: %T", f.Geometry)
			continue
		}
		of := orderedFeature{feature: f, sequence: float64(i), fileIdx: i}
		if seq, ok := f.Properties["sequence"].(float64); ok {
			of.sequence = seq
		}
		points = append(points, of)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no point features in input")
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].sequence != points[j].sequence {
			return points[i].sequence < points[j].sequence
		}
		return points[i].fileIdx < points[j].fileIdx
	})

	if title == "" {
		title = tourID
	}
	t := &model.Tour{
		ID:       tourID,
		Title:    title,
		Language: language,
	}

	for i, of := range points {
		pt := of.feature.Geometry.(orb.Point)
		props := of.feature.Properties

		mediaRef, _ := props["media_ref"].(string)
		if mediaRef == "" {
			return nil, fmt.Errorf("feature %d: missing media_ref property", of.fileIdx)
		}

		wp := model.Waypoint{
			ID:            fmt.Sprintf("%s-wp-%03d", tourID, i+1),
			SequenceOrder: i + 1,
			Lat:           pt.Lat(),
			Lon:           pt.Lon(),
			TriggerRadius: defaultRadius,
			MediaRef:      mediaRef,
		}
		if name, ok := props["name"].(string); ok {
			wp.Name = name
		}
		if sub, ok := props["subtitle_file"].(string); ok {
			wp.SubtitleFile = sub
		}
		if r, ok := props["radius_m"].(float64); ok && r > 0 {
			wp.TriggerRadius = r
		}
		t.Waypoints = append(t.Waypoints, wp)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("generated tour is invalid: %w", err)
	}
	return t, nil
}
