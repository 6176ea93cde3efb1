package ecowitt

import (
	"errors"
	"testing"
)

// livedataObjects mirrors typical common_list entries as decoded from JSON.
func livedataObjects() map[string]map[string]any {
	return map[string]map[string]any{
		"temperature": {"id": "0x03", "val": "26.5", "unit": "C", "battery": "0"},
		"humidity":    {"id": "0x07", "val": "56%"},
		"direction":   {"id": "0x0A", "val": "272"},
		"wind_speed":  {"id": "0x0B", "val": "4.20 km/h"},
		"rain":        {"id": "0x11", "val": "4.6 mm", "battery": "5", "voltage": "3.28"},
		"rain_rate":   {"id": "0x0E", "val": "2.2 mm/Hr"},
		"light":       {"id": "0x15", "val": "157.38 W/m2"},
		"uvi":         {"id": "0x17", "val": "1"},
	}
}

func metricUnits(t *testing.T) DeviceUnits {
	t.Helper()
	units, err := DefaultUnits("metric")
	if err != nil {
		t.Fatalf("DefaultUnits() error = %v", err)
	}
	return units
}

func wantValue(t *testing.T, got Value, err error, want Value) {
	t.Helper()
	if err != nil {
		t.Fatalf("ParseObsValue() error = %v", err)
	}
	if got != want {
		t.Errorf("ParseObsValue() = %+v, want %+v", got, want)
	}
}

func TestParser_ParseObsValue_Metric(t *testing.T) {
	p := NewParser()
	objects := livedataObjects()
	units := metricUnits(t)

	t.Run("temperature via sibling unit key", func(t *testing.T) {
		got, err := p.ParseObsValue("val", objects["temperature"], GroupTemperature, units)
		wantValue(t, got, err, Value{Magnitude: 26.5, Unit: UnitDegreeC, Group: GroupTemperature})
	})

	t.Run("humidity percent suffix forces humidity group", func(t *testing.T) {
		got, err := p.ParseObsValue("val", objects["humidity"], GroupHumidity, units)
		wantValue(t, got, err, Value{Magnitude: 56, Unit: UnitPercent, Group: GroupHumidity})
	})

	t.Run("direction uses device units", func(t *testing.T) {
		got, err := p.ParseObsValue("val", objects["direction"], GroupDirection, units)
		wantValue(t, got, err, Value{Magnitude: 272, Unit: UnitDegreeCompass, Group: GroupDirection})
	})

	t.Run("speed with embedded unit", func(t *testing.T) {
		got, err := p.ParseObsValue("val", objects["wind_speed"], GroupSpeed, units)
		wantValue(t, got, err, Value{Magnitude: 4.20, Unit: UnitKmPerHour, Group: GroupSpeed})
	})

	t.Run("embedded unit wins over device units", func(t *testing.T) {
		// metric profile reports rain in cm but the payload says mm
		got, err := p.ParseObsValue("val", objects["rain"], GroupRain, units)
		wantValue(t, got, err, Value{Magnitude: 4.6, Unit: UnitMm, Group: GroupRain})
	})

	t.Run("rain rate with mixed-case unit", func(t *testing.T) {
		got, err := p.ParseObsValue("val", objects["rain_rate"], GroupRainRate, units)
		wantValue(t, got, err, Value{Magnitude: 2.2, Unit: UnitMmPerHour, Group: GroupRainRate})
	})

	t.Run("light in watts per square metre", func(t *testing.T) {
		got, err := p.ParseObsValue("val", objects["light"], GroupIlluminance, units)
		wantValue(t, got, err, Value{Magnitude: 157.38, Unit: UnitWattPerM2, Group: GroupIlluminance})
	})
}

func TestParser_ParseObsValue_USCustomary(t *testing.T) {
	p := NewParser()
	objects := livedataObjects()
	units, err := DefaultUnits("us")
	if err != nil {
		t.Fatalf("DefaultUnits() error = %v", err)
	}

	t.Run("temperature in fahrenheit", func(t *testing.T) {
		obj := objects["temperature"]
		obj["unit"] = "F"
		got, err := p.ParseObsValue("val", obj, GroupTemperature, units)
		wantValue(t, got, err, Value{Magnitude: 26.5, Unit: UnitDegreeF, Group: GroupTemperature})
	})

	t.Run("speed in miles per hour", func(t *testing.T) {
		obj := objects["wind_speed"]
		obj["val"] = "4.20 mph"
		got, err := p.ParseObsValue("val", obj, GroupSpeed, units)
		wantValue(t, got, err, Value{Magnitude: 4.20, Unit: UnitMilePerHour, Group: GroupSpeed})
	})

	t.Run("rain in inches", func(t *testing.T) {
		obj := objects["rain"]
		obj["val"] = "4.6 in"
		got, err := p.ParseObsValue("val", obj, GroupRain, units)
		wantValue(t, got, err, Value{Magnitude: 4.6, Unit: UnitInch, Group: GroupRain})
	})

	t.Run("rain rate in inches per hour", func(t *testing.T) {
		obj := objects["rain_rate"]
		obj["val"] = "2.2 in/Hr"
		got, err := p.ParseObsValue("val", obj, GroupRainRate, units)
		wantValue(t, got, err, Value{Magnitude: 2.2, Unit: UnitInchPerHour, Group: GroupRainRate})
	})
}

func TestParser_ParseObsValue_OtherUnits(t *testing.T) {
	p := NewParser()
	objects := livedataObjects()

	t.Run("speed in metres per second", func(t *testing.T) {
		units, err := DefaultUnits("metric_wx")
		if err != nil {
			t.Fatalf("DefaultUnits() error = %v", err)
		}
		obj := objects["wind_speed"]
		obj["val"] = "4.20 m/s"
		got, err := p.ParseObsValue("val", obj, GroupSpeed, units)
		wantValue(t, got, err, Value{Magnitude: 4.20, Unit: UnitMeterPerSec, Group: GroupSpeed})
	})

	t.Run("speed in knots", func(t *testing.T) {
		units := metricUnits(t)
		units[GroupSpeed] = UnitKnot
		obj := objects["wind_speed"]
		obj["val"] = "4.20 knots"
		got, err := p.ParseObsValue("val", obj, GroupSpeed, units)
		wantValue(t, got, err, Value{Magnitude: 4.20, Unit: UnitKnot, Group: GroupSpeed})
	})
}

// Every token in the lookup table must round-trip through an embedded
// "{value} {token}" string to its canonical unit, with no device units
// needed.
func TestParser_ParseObsValue_AllUnitTokens(t *testing.T) {
	p := NewParser()

	for token, canonical := range unitLookup {
		t.Run(token, func(t *testing.T) {
			obj := map[string]any{"val": "4.2 " + token}
			got, err := p.ParseObsValue("val", obj, GroupSpeed, nil)
			if err != nil {
				t.Fatalf("ParseObsValue(%q) error = %v", obj["val"], err)
			}
			if got.Magnitude != 4.2 {
				t.Errorf("magnitude = %v, want 4.2", got.Magnitude)
			}
			if got.Unit != canonical {
				t.Errorf("unit = %q, want %q", got.Unit, canonical)
			}
			wantGroup := GroupSpeed
			if canonical == UnitPercent {
				wantGroup = GroupHumidity
			}
			if got.Group != wantGroup {
				t.Errorf("group = %q, want %q", got.Group, wantGroup)
			}
		})
	}
}

func TestParser_ParseObsValue_Errors(t *testing.T) {
	p := NewParser()
	units := metricUnits(t)

	t.Run("missing field", func(t *testing.T) {
		obj := map[string]any{"id": "0x0B"}
		_, err := p.ParseObsValue("val", obj, GroupSpeed, units)
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("ParseObsValue() error = %v, want ErrMissingField", err)
		}
	})

	t.Run("no numeric substring", func(t *testing.T) {
		obj := map[string]any{"val": "test"}
		_, err := p.ParseObsValue("val", obj, GroupSpeed, units)
		if !errors.Is(err, ErrParse) {
			t.Errorf("ParseObsValue() error = %v, want ErrParse", err)
		}
	})

	t.Run("numeric match fails conversion", func(t *testing.T) {
		obj := map[string]any{"val": ",.,"}
		_, err := p.ParseObsValue("val", obj, GroupSpeed, units)
		if !errors.Is(err, ErrParse) {
			t.Errorf("ParseObsValue() error = %v, want ErrParse", err)
		}
	})

	t.Run("unknown embedded unit", func(t *testing.T) {
		obj := map[string]any{"val": "4.2 dogs"}
		_, err := p.ParseObsValue("val", obj, GroupSpeed, units)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("ParseObsValue() error = %v, want *ParseError", err)
		}
		if perr.Key != "val" || perr.Group != GroupSpeed {
			t.Errorf("ParseError = %+v, want key %q group %q", perr, "val", GroupSpeed)
		}
	})

	t.Run("unknown sibling unit", func(t *testing.T) {
		obj := map[string]any{"val": "26.5", "unit": "test"}
		_, err := p.ParseObsValue("val", obj, GroupTemperature, units)
		if !errors.Is(err, ErrParse) {
			t.Errorf("ParseObsValue() error = %v, want ErrParse", err)
		}
	})

	t.Run("unit group missing from device units", func(t *testing.T) {
		obj := map[string]any{"val": "26.5"}
		partial := DeviceUnits{GroupSpeed: UnitKmPerHour}
		_, err := p.ParseObsValue("val", obj, GroupTemperature, partial)
		if !errors.Is(err, ErrParse) {
			t.Errorf("ParseObsValue() error = %v, want ErrParse", err)
		}
	})

	t.Run("nil device units", func(t *testing.T) {
		obj := map[string]any{"val": "26.5"}
		_, err := p.ParseObsValue("val", obj, GroupTemperature, nil)
		if !errors.Is(err, ErrParse) {
			t.Errorf("ParseObsValue() error = %v, want ErrParse", err)
		}
	})

	t.Run("device units used when no explicit unit", func(t *testing.T) {
		obj := map[string]any{"val": "26.5"}
		got, err := p.ParseObsValue("val", obj, GroupTemperature, units)
		wantValue(t, got, err, Value{Magnitude: 26.5, Unit: UnitDegreeC, Group: GroupTemperature})
	})
}

func TestParser_KindForCode(t *testing.T) {
	p := NewParser()

	wantKinds := map[string]ObservationKind{
		"0x01":        KindTemperature,
		"0x02":        KindTemperature,
		"0x03":        KindTemperature,
		"3":           KindTemperature,
		"0x04":        KindTemperature,
		"4":           KindTemperature,
		"0x05":        KindTemperature,
		"5":           KindPressure,
		"0x07":        KindHumidity,
		"0x08":        KindNoop,
		"0x09":        KindNoop,
		"0x0A":        KindDirection,
		"0x0B":        KindSpeed,
		"0x0C":        KindSpeed,
		"0x0D":        KindRainfall,
		"0x0E":        KindRainRate,
		"0x0F":        KindRainfall,
		"0x10":        KindRainfall,
		"0x11":        KindRainfall,
		"0x12":        KindRainfall,
		"0x13":        KindRainfall,
		"0x14":        KindRainfall,
		"0x15":        KindLight,
		"0x16":        KindUVRadiation,
		"0x17":        KindUVIndex,
		"0x18":        KindNoop,
		"0x19":        KindSpeed,
		"srain_piezo": KindBoolean,
	}
	for code, want := range wantKinds {
		got, err := p.KindForCode(code)
		if err != nil {
			t.Errorf("KindForCode(%q) error = %v", code, err)
			continue
		}
		if got != want {
			t.Errorf("KindForCode(%q) = %v, want %v", code, got, want)
		}
	}

	t.Run("unknown code", func(t *testing.T) {
		_, err := p.KindForCode("0x99")
		if !errors.Is(err, ErrUnknownObservation) {
			t.Errorf("KindForCode() error = %v, want ErrUnknownObservation", err)
		}
	})
}

func TestParser_Processors(t *testing.T) {
	p := NewParser()
	units := metricUnits(t)

	t.Run("index is unitless", func(t *testing.T) {
		got, err := p.ProcessIndex("val", map[string]any{"val": "1"})
		wantValue(t, got, err, Value{Magnitude: 1, Unit: UnitUVIndex, Group: GroupUV})
	})

	t.Run("boolean normalises non-zero to one", func(t *testing.T) {
		got, err := p.ProcessBoolean("val", map[string]any{"val": "2"})
		wantValue(t, got, err, Value{Magnitude: 1, Unit: UnitBoolean, Group: GroupBoolean})

		got, err = p.ProcessBoolean("val", map[string]any{"val": "0"})
		wantValue(t, got, err, Value{Magnitude: 0, Unit: UnitBoolean, Group: GroupBoolean})
	})

	t.Run("leak states", func(t *testing.T) {
		got, err := p.ProcessLeak("status", map[string]any{"status": "Normal"})
		wantValue(t, got, err, Value{Magnitude: 0, Unit: UnitBoolean, Group: GroupBoolean})

		got, err = p.ProcessLeak("status", map[string]any{"status": "Leaking"})
		wantValue(t, got, err, Value{Magnitude: 1, Unit: UnitBoolean, Group: GroupBoolean})

		if _, err := p.ProcessLeak("status", map[string]any{"status": "--"}); !errors.Is(err, ErrParse) {
			t.Errorf("ProcessLeak() error = %v, want ErrParse", err)
		}
	})

	t.Run("dispatch matches direct call", func(t *testing.T) {
		obj := map[string]any{"val": "4.20 km/h"}
		direct, err := p.ProcessSpeed("val", obj, units)
		if err != nil {
			t.Fatalf("ProcessSpeed() error = %v", err)
		}
		dispatched, err := p.Process(KindSpeed, "val", obj, units)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if dispatched != direct {
			t.Errorf("Process() = %+v, want %+v", dispatched, direct)
		}
	})

	t.Run("noop passes raw value through", func(t *testing.T) {
		obj := map[string]any{"val": "free text"}
		got, err := p.ProcessNoop("val", obj)
		if err != nil {
			t.Fatalf("ProcessNoop() error = %v", err)
		}
		if got != "free text" {
			t.Errorf("ProcessNoop() = %v, want %q", got, "free text")
		}
	})
}

func TestIsSupported(t *testing.T) {
	for _, model := range SupportedDevices {
		if !IsSupported(model) {
			t.Errorf("IsSupported(%q) = false, want true", model)
		}
	}
	if IsSupported("GW1000") {
		t.Error("IsSupported(GW1000) = true, want false")
	}
	if !IsSupported("gw2000") {
		t.Error("IsSupported(gw2000) = false, want true")
	}
}
