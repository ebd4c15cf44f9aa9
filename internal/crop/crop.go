// Package crop holds the crop recommendation form: fields filled by voice
// or by hand, the farm location, and the spoken summary of the result.
package crop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwulff/krishi/internal/api"
	"github.com/jwulff/krishi/internal/speech"
)

var (
	// ErrPermissionDenied is returned by a Locator the user has not allowed.
	ErrPermissionDenied = errors.New("crop: location permission denied")
	// ErrUnavailable is returned when no position source exists.
	ErrUnavailable = errors.New("crop: location unavailable")
)

// Form fields by their wire names.
const (
	FieldLocation = "location"
	FieldSeason   = "season"
	FieldSoilType = "soil_type"
	FieldWater    = "water"
)

// Form is the recommendation request being assembled.
type Form struct {
	Location string
	Season   string
	SoilType string
	Water    string
}

// Apply copies the fields a voice parse extracted. Empty values leave the
// form untouched.
func (f *Form) Apply(parsed map[string]string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(parsed[key]); v != "" {
			*dst = v
		}
	}
	set(&f.Location, FieldLocation)
	set(&f.Season, FieldSeason)
	set(&f.SoilType, FieldSoilType)
	set(&f.Water, FieldWater)
}

// Missing lists the required fields still empty, in form order.
func (f Form) Missing() []string {
	var out []string
	if strings.TrimSpace(f.Season) == "" {
		out = append(out, FieldSeason)
	}
	if strings.TrimSpace(f.SoilType) == "" {
		out = append(out, FieldSoilType)
	}
	if strings.TrimSpace(f.Water) == "" {
		out = append(out, FieldWater)
	}
	return out
}

// IncompleteError names the fields a submission lacks.
type IncompleteError struct {
	Fields []string
}

func (e *IncompleteError) Error() string {
	return "crop: missing " + strings.Join(e.Fields, ", ")
}

// Validate rejects a form that cannot be sent.
func (f Form) Validate() error {
	if m := f.Missing(); len(m) > 0 {
		return &IncompleteError{Fields: m}
	}
	return nil
}

// Request converts the form for the backend.
func (f Form) Request() api.CropRequest {
	return api.CropRequest{
		Location: strings.TrimSpace(f.Location),
		Season:   strings.TrimSpace(f.Season),
		SoilType: strings.TrimSpace(f.SoilType),
		Water:    strings.TrimSpace(f.Water),
	}
}

// Position is a point on the map.
type Position struct {
	Lat float64
	Lng float64
}

// Locator finds the farm once.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// StaticLocator always answers with a fixed position.
type StaticLocator Position

// Locate implements Locator.
func (s StaticLocator) Locate(context.Context) (Position, error) {
	return Position(s), nil
}

// ParseLocation reads "lat,lng". An empty string yields a nil Locator.
func ParseLocation(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("parse location %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("parse location %q: bad latitude", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("parse location %q: bad longitude", s)
	}
	return StaticLocator{Lat: lat, Lng: lng}, nil
}

// Location texts shown in place of coordinates.
const (
	LocationSearching = "GPS शोधत आहे..."
	LocationNoGPS     = "GPS उपलब्ध नाही"
	LocationDenied    = "GPS परवानगी नाकारली"
)

// DescribeLocation formats the farm position for the form.
func DescribeLocation(ctx context.Context, loc Locator) string {
	if loc == nil {
		return LocationNoGPS
	}
	p, err := loc.Locate(ctx)
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return LocationDenied
	case err != nil:
		return LocationNoGPS
	}
	return fmt.Sprintf("Lat: %.4f, Lng: %.4f", p.Lat, p.Lng)
}

var marathiNames = map[string]string{
	"Rice":                 "तांदूळ (भात)",
	"Wheat":                "गहू",
	"Sugarcane":            "ऊस",
	"Cotton":               "कापूस",
	"Soybean":              "सोयाबीन",
	"Maize":                "मका",
	"Bajra (Pearl Millet)": "बाजरी",
	"Jowar (Sorghum)":      "ज्वारी",
	"Pulses (Tur/Gram)":    "डाळी (तूर/हरभरा)",
	"Gram (Chana)":         "हरभरा",
	"Mustard":              "मोहरी",
	"Onion":                "कांदा",
	"Vegetables":           "भाज्या",
	"Watermelon":           "टरबूज",
	"Cucumber":             "काकडी",
}

// MarathiName returns the Marathi name of a crop, or the name unchanged.
func MarathiName(crop string) string {
	if m, ok := marathiNames[crop]; ok {
		return m
	}
	return crop
}

var ordinals = []string{"पहिलं", "दुसरं", "तिसरं"}

// Script is what the speech controller reads out for a recommendation.
// Only the top three picks are spoken.
func Script(picks []api.CropPick) []string {
	if len(picks) == 0 {
		return nil
	}
	out := []string{"तुमच्यासाठी सर्वोत्तम तीन पिके आहेत."}
	for i, p := range picks {
		if i == len(ordinals) {
			break
		}
		out = append(out, fmt.Sprintf("%s पीक: %s. अपेक्षित नफा: %s.",
			ordinals[i], MarathiName(p.Crop), strings.TrimSpace(speech.MarathiNumbers.Replace(p.Profit))))
	}
	return append(out, "धन्यवाद!")
}
