package ecowitt

import (
	"fmt"
)

// FieldProblem records a single live-data field that failed to parse.
// Failures never abort the parse of the rest of the response.
type FieldProblem struct {
	Key string
	Err error
}

// Livedata is the parsed get_livedata_info response: a flat, dot-keyed view
// of every observation the device reported.
type Livedata struct {
	// Values holds the normalised observations keyed by dotted path,
	// e.g. "common_list.0x02.val" or "ch_soil.1.humidity".
	Values map[string]Value

	// Raw holds fields carried through without normalisation: sensor
	// battery and voltage raws, names, and noop observation values. The
	// keys match the registry's live-data voltage table.
	Raw map[string]any

	// Problems lists the fields that could not be parsed.
	Problems []FieldProblem
}

// ParseGetLivedata parses a decoded get_livedata_info response body.
//
// The response is a JSON object of blocks: code-keyed arrays
// (common_list, rain, piezoRain), channelised arrays (ch_aisle, ch_soil,
// ch_temp, ch_leak, ch_pm25, ch_lds) and single-object arrays (wh25,
// lightning, co2). Unknown blocks are ignored; per-field failures are
// recorded in Problems and skipped. Returns ErrInvalidResponse when
// response is not a JSON object.
func (p *Parser) ParseGetLivedata(response any, deviceUnits DeviceUnits) (*Livedata, error) {
	obj, ok := response.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: get_livedata_info response is not an object", ErrInvalidResponse)
	}
	ld := &Livedata{
		Values: make(map[string]Value),
		Raw:    make(map[string]any),
	}
	for _, block := range []string{"common_list", "rain", "piezoRain"} {
		if entries, ok := obj[block].([]any); ok {
			p.parseCodedBlock(ld, block, entries, deviceUnits)
		}
	}
	if entries, ok := obj["wh25"].([]any); ok {
		p.parseWH25(ld, entries, deviceUnits)
	}
	if entries, ok := obj["lightning"].([]any); ok {
		p.parseLightning(ld, entries, deviceUnits)
	}
	if entries, ok := obj["co2"].([]any); ok {
		p.parseCO2(ld, entries, deviceUnits)
	}
	for block, fields := range channelisedFields {
		if entries, ok := obj[block].([]any); ok {
			p.parseChannelised(ld, block, entries, fields, deviceUnits)
		}
	}
	return ld, nil
}

// parseCodedBlock handles arrays whose entries self-identify with a type
// code, dispatching each to the processor the code selects.
func (p *Parser) parseCodedBlock(ld *Livedata, block string, entries []any, deviceUnits DeviceUnits) {
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		code := stringify(item["id"])
		prefix := block + "." + code
		kind, err := p.KindForCode(code)
		if err != nil {
			ld.Problems = append(ld.Problems, FieldProblem{Key: prefix, Err: err})
			continue
		}
		result, err := p.Process(kind, "val", item, deviceUnits)
		if err != nil {
			ld.Problems = append(ld.Problems, FieldProblem{Key: prefix + ".val", Err: err})
		} else if v, isValue := result.(Value); isValue {
			ld.Values[prefix+".val"] = v
		} else {
			ld.Raw[prefix+".val"] = result
		}
		carryRaw(ld, prefix, item, "battery", "voltage")
	}
}

// wh25Fields maps the indoor-sensor block's field names to unit groups.
var wh25Fields = map[string]string{
	"intemp": GroupTemperature,
	"inhumi": GroupHumidity,
	"abs":    GroupPressure,
	"rel":    GroupPressure,
}

func (p *Parser) parseWH25(ld *Livedata, entries []any, deviceUnits DeviceUnits) {
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for field, group := range wh25Fields {
			if _, present := item[field]; !present {
				continue
			}
			v, err := p.ParseObsValue(field, item, group, deviceUnits)
			if err != nil {
				ld.Problems = append(ld.Problems, FieldProblem{Key: "wh25." + field, Err: err})
				continue
			}
			ld.Values["wh25."+field] = v
		}
		// WS3910 consoles fold an indoor CO2 reading into the wh25 block.
		if _, present := item["CO2"]; present {
			p.parseInto(ld, "wh25.CO2", func() (Value, error) { return p.ProcessCount("CO2", item) })
		}
		if _, present := item["CO2_24H"]; present {
			p.parseInto(ld, "wh25.CO2_24H", func() (Value, error) { return p.ProcessCount("CO2_24H", item) })
		}
	}
}

func (p *Parser) parseLightning(ld *Livedata, entries []any, deviceUnits DeviceUnits) {
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if _, present := item["distance"]; present {
			p.parseInto(ld, "lightning.distance", func() (Value, error) {
				return p.ProcessDistance("distance", item, deviceUnits)
			})
		}
		if _, present := item["timestamp"]; present {
			p.parseInto(ld, "lightning.timestamp", func() (Value, error) { return p.ProcessDateTime("timestamp", item) })
		}
		if _, present := item["count"]; present {
			p.parseInto(ld, "lightning.count", func() (Value, error) { return p.ProcessCount("count", item) })
		}
		carryRaw(ld, "lightning", item, "battery")
	}
}

func (p *Parser) parseCO2(ld *Livedata, entries []any, deviceUnits DeviceUnits) {
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if _, present := item["temp"]; present {
			p.parseInto(ld, "co2.temp", func() (Value, error) {
				return p.ProcessTemperature("temp", item, deviceUnits)
			})
		}
		if _, present := item["humidity"]; present {
			p.parseInto(ld, "co2.humidity", func() (Value, error) {
				return p.ProcessHumidity("humidity", item, deviceUnits)
			})
		}
		for _, field := range []string{"CO2", "CO2_24H", "PM25", "PM25_24H", "PM10", "PM10_24H", "PM1", "PM1_24H", "PM4", "PM4_24H"} {
			field := field
			if _, present := item[field]; present {
				p.parseInto(ld, "co2."+field, func() (Value, error) { return p.ProcessCount(field, item) })
			}
		}
		carryRaw(ld, "co2", item, "battery")
	}
}

// channelisedFields maps each channelised block to its parseable fields
// and their unit groups. Leak status is handled separately as a flag.
var channelisedFields = map[string]map[string]string{
	"ch_aisle": {
		"temp":     GroupTemperature,
		"humidity": GroupHumidity,
	},
	"ch_soil": {
		"humidity": GroupHumidity,
	},
	"ch_temp": {
		"temp": GroupTemperature,
	},
	"ch_pm25": {
		"PM25": GroupCount,
	},
	"ch_leak": {},
	"ch_lds": {
		"air":   GroupDistance,
		"depth": GroupDistance,
	},
}

func (p *Parser) parseChannelised(ld *Livedata, block string, entries []any, fields map[string]string, deviceUnits DeviceUnits) {
	for _, ce := range ChanneliseEnumerate(entries) {
		prefix := fmt.Sprintf("%s.%d", block, ce.Channel)
		item := ce.Object
		for field, group := range fields {
			if _, present := item[field]; !present {
				continue
			}
			var (
				v   Value
				err error
			)
			if group == GroupCount {
				v, err = p.ProcessCount(field, item)
			} else {
				v, err = p.ParseObsValue(field, item, group, deviceUnits)
			}
			if err != nil {
				ld.Problems = append(ld.Problems, FieldProblem{Key: prefix + "." + field, Err: err})
				continue
			}
			ld.Values[prefix+"."+field] = v
		}
		if block == "ch_leak" {
			if _, present := item["status"]; present {
				p.parseInto(ld, prefix+".status", func() (Value, error) { return p.ProcessLeak("status", item) })
			}
		}
		carryRaw(ld, prefix, item, "battery", "voltage", "name")
	}
}

// parseInto runs fn and files the result under key, recording failures.
func (p *Parser) parseInto(ld *Livedata, key string, fn func() (Value, error)) {
	v, err := fn()
	if err != nil {
		ld.Problems = append(ld.Problems, FieldProblem{Key: key, Err: err})
		return
	}
	ld.Values[key] = v
}

// carryRaw copies the named fields from item into the raw map unchanged.
func carryRaw(ld *Livedata, prefix string, item map[string]any, fields ...string) {
	for _, field := range fields {
		if v, ok := item[field]; ok {
			ld.Raw[prefix+"."+field] = v
		}
	}
}
