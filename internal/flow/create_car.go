package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fusioncars/dealerbot/internal/models"
)

// Field keys collected by the create-car flow.
const (
	FieldBrand        = "brand"
	FieldModel        = "model"
	FieldYear         = "year"
	FieldPrice        = "price"
	FieldKmsDriven    = "kmsDriven"
	FieldFuelType     = "fuelType"
	FieldTransmission = "transmission"
	FieldColor        = "color"
	FieldOwners       = "owners"
	FieldImage        = "image"
)

// Listing defaults applied at commit for attributes the flow does not collect.
const (
	DefaultMileage        = "15 km/l"
	DefaultEngineCapacity = "2000cc"
	DefaultSeating        = 5
)

// NewCreateCarFlow builds the ten-step guided listing-creation chain.
func NewCreateCarFlow() *Flow {
	return MustNewFlow(KindCreateCar, "❌ Car creation cancelled.", []Step{
		{
			Key:    FieldBrand,
			Prompt: "🚗 *Create New Car Listing*\n\nStep 1/10\nEnter the *brand* (e.g., Mercedes-Benz, BMW, Audi):",
			Next:   FieldModel,
			Apply:  requiredText(FieldBrand, "brand"),
		},
		{
			Key:    FieldModel,
			Prompt: "Step 2/10\nEnter the *model*:",
			Next:   FieldYear,
			Apply:  requiredText(FieldModel, "model"),
		},
		{
			Key:    FieldYear,
			Prompt: "Step 3/10\nEnter the *year*:",
			Next:   FieldPrice,
			Apply:  yearField(FieldYear),
		},
		{
			Key:    FieldPrice,
			Prompt: "Step 4/10\nEnter the *price* (in ₹):",
			Next:   FieldKmsDriven,
			Apply:  positiveIntField(FieldPrice, "price"),
		},
		{
			Key:    FieldKmsDriven,
			Prompt: "Step 5/10\nEnter *kilometers driven*:",
			Next:   FieldFuelType,
			Apply:  nonNegativeIntField(FieldKmsDriven, "kilometers driven"),
		},
		{
			Key:    FieldFuelType,
			Prompt: "Step 6/10\nEnter *fuel type* (Petrol/Diesel/Electric/Hybrid/CNG):",
			Next:   FieldTransmission,
			Apply:  fuelTypeField(FieldFuelType),
		},
		{
			Key:    FieldTransmission,
			Prompt: "Step 7/10\nEnter *transmission* (Manual/Automatic):",
			Next:   FieldColor,
			Apply:  transmissionField(FieldTransmission),
		},
		{
			Key:    FieldColor,
			Prompt: "Step 8/10\nEnter *color*:",
			Next:   FieldOwners,
			Apply:  requiredText(FieldColor, "color"),
		},
		{
			Key:    FieldOwners,
			Prompt: "Step 9/10\nEnter number of *previous owners*:",
			Next:   FieldImage,
			Apply:  nonNegativeIntField(FieldOwners, "previous owners"),
		},
		{
			Key:    FieldImage,
			Prompt: "Step 10/10\nEnter *image URL*:",
			Next:   TerminalStep,
			Apply:  urlField(FieldImage),
		},
	})
}

// requiredText stores trimmed non-empty input under key.
func requiredText(key, label string) func(string, map[string]string) error {
	return func(input string, fields map[string]string) error {
		value := strings.TrimSpace(input)
		if value == "" {
			return fmt.Errorf("The %s cannot be empty. Please try again.", label)
		}
		fields[key] = value
		return nil
	}
}

// yearField validates a plausible model year.
func yearField(key string) func(string, map[string]string) error {
	return func(input string, fields map[string]string) error {
		year, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil {
			return fmt.Errorf("Please enter the year as a number (e.g., 2023).")
		}
		maxYear := time.Now().Year() + 1
		if year < models.MinListingYear || year > maxYear {
			return fmt.Errorf("Please enter a year between %d and %d.", models.MinListingYear, maxYear)
		}
		fields[key] = strconv.Itoa(year)
		return nil
	}
}

func positiveIntField(key, label string) func(string, map[string]string) error {
	return func(input string, fields map[string]string) error {
		n, err := parseIndianNumber(input)
		if err != nil || n <= 0 {
			return fmt.Errorf("Please enter the %s as a positive number.", label)
		}
		fields[key] = strconv.FormatInt(n, 10)
		return nil
	}
}

func nonNegativeIntField(key, label string) func(string, map[string]string) error {
	return func(input string, fields map[string]string) error {
		n, err := parseIndianNumber(input)
		if err != nil || n < 0 {
			return fmt.Errorf("Please enter %s as a number (0 or more).", label)
		}
		fields[key] = strconv.FormatInt(n, 10)
		return nil
	}
}

func fuelTypeField(key string) func(string, map[string]string) error {
	return func(input string, fields map[string]string) error {
		ft, ok := normalizeFuelType(input)
		if !ok {
			return fmt.Errorf("Please choose one of: Petrol, Diesel, Electric, Hybrid, CNG.")
		}
		fields[key] = string(ft)
		return nil
	}
}

func transmissionField(key string) func(string, map[string]string) error {
	return func(input string, fields map[string]string) error {
		tr, ok := normalizeTransmission(input)
		if !ok {
			return fmt.Errorf("Please choose either Manual or Automatic.")
		}
		fields[key] = string(tr)
		return nil
	}
}

func urlField(key string) func(string, map[string]string) error {
	return func(input string, fields map[string]string) error {
		value := strings.TrimSpace(input)
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("Please send a full image URL starting with http:// or https://.")
		}
		fields[key] = value
		return nil
	}
}

// parseIndianNumber parses an integer, tolerating grouping commas ("9,50,000").
func parseIndianNumber(input string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(input), ",", "")
	return strconv.ParseInt(cleaned, 10, 64)
}

// normalizeFuelType matches input case-insensitively against the accepted fuel types.
func normalizeFuelType(input string) (models.FuelType, bool) {
	for _, ft := range []models.FuelType{models.FuelPetrol, models.FuelDiesel, models.FuelElectric, models.FuelHybrid, models.FuelCNG} {
		if strings.EqualFold(strings.TrimSpace(input), string(ft)) {
			return ft, true
		}
	}
	return "", false
}

// normalizeTransmission matches input case-insensitively against the accepted kinds.
func normalizeTransmission(input string) (models.Transmission, bool) {
	for _, tr := range []models.Transmission{models.TransmissionManual, models.TransmissionAutomatic} {
		if strings.EqualFold(strings.TrimSpace(input), string(tr)) {
			return tr, true
		}
	}
	return "", false
}

// CarFromFields assembles a Car from the complete create-car field set.
// Numeric fields were validated per-step, so parse errors here indicate a bug.
func CarFromFields(fields map[string]string, adminID string) (models.Car, error) {
	for _, key := range []string{FieldBrand, FieldModel, FieldYear, FieldPrice, FieldKmsDriven, FieldFuelType, FieldTransmission, FieldColor, FieldOwners, FieldImage} {
		if fields[key] == "" {
			return models.Car{}, fmt.Errorf("missing collected field %q", key)
		}
	}

	year, err := strconv.Atoi(fields[FieldYear])
	if err != nil {
		return models.Car{}, fmt.Errorf("invalid collected year %q: %w", fields[FieldYear], err)
	}
	price, err := strconv.ParseInt(fields[FieldPrice], 10, 64)
	if err != nil {
		return models.Car{}, fmt.Errorf("invalid collected price %q: %w", fields[FieldPrice], err)
	}
	kms, err := strconv.Atoi(fields[FieldKmsDriven])
	if err != nil {
		return models.Car{}, fmt.Errorf("invalid collected kilometers %q: %w", fields[FieldKmsDriven], err)
	}
	owners, err := strconv.Atoi(fields[FieldOwners])
	if err != nil {
		return models.Car{}, fmt.Errorf("invalid collected owners %q: %w", fields[FieldOwners], err)
	}

	return models.Car{
		Name:           fields[FieldBrand] + " " + fields[FieldModel],
		Brand:          fields[FieldBrand],
		Model:          fields[FieldModel],
		Year:           year,
		Price:          price,
		KmsDriven:      kms,
		FuelType:       models.FuelType(fields[FieldFuelType]),
		Transmission:   models.Transmission(fields[FieldTransmission]),
		Color:          fields[FieldColor],
		Owners:         owners,
		Image:          fields[FieldImage],
		Mileage:        DefaultMileage,
		EngineCapacity: DefaultEngineCapacity,
		Seating:        DefaultSeating,
		CreatedBy:      adminID,
		LastUpdatedBy:  adminID,
	}, nil
}
