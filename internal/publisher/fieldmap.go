package publisher

// defaultFieldMap renames the gateway's dotted observation keys to the
// conventional record field names consumers expect. Entries here can be
// overridden or extended through the field_map configuration section.
//
// Coded-block keys carry the ".val" suffix the parser emits; channelised
// blocks (ch_aisle, ch_soil, ...) are left unmapped and pass through under
// their dotted names, since their meaning depends on where the user
// installed each channel.
var defaultFieldMap = map[string]string{
	// common_list: the outdoor sensor cluster.
	"common_list.0x02.val": "outTemp",
	"common_list.0x03.val": "dewpoint",
	"common_list.0x04.val": "windchill",
	"common_list.0x05.val": "heatindex",
	"common_list.0x07.val": "outHumidity",
	"common_list.0x0A.val": "windDir",
	"common_list.0x0B.val": "windSpeed",
	"common_list.0x0C.val": "gustSpeed",
	"common_list.0x15.val": "luminosity",
	"common_list.0x16.val": "radiation",
	"common_list.0x17.val": "UV",
	"common_list.0x19.val": "dayMaxWind",

	// wh25: the indoor console sensor.
	"wh25.intemp":  "inTemp",
	"wh25.inhumi":  "inHumidity",
	"wh25.abs":     "pressure",
	"wh25.rel":     "barometer",
	"wh25.CO2":     "co2_in",
	"wh25.CO2_24H": "co2_in_24h",

	// rain: the traditional tipping-bucket gauge.
	"rain.0x0D.val": "rainEvent",
	"rain.0x0E.val": "rainRate",
	"rain.0x10.val": "dayRain",
	"rain.0x11.val": "weekRain",
	"rain.0x12.val": "monthRain",
	"rain.0x13.val": "yearRain",

	// piezoRain: the WS90 haptic gauge, prefixed to keep both gauges
	// distinguishable when a station carries both.
	"piezoRain.0x0D.val": "p_rainEvent",
	"piezoRain.0x0E.val": "p_rainRate",
	"piezoRain.0x10.val": "p_dayRain",
	"piezoRain.0x11.val": "p_weekRain",
	"piezoRain.0x12.val": "p_monthRain",
	"piezoRain.0x13.val": "p_yearRain",

	// lightning: the WH57 detector.
	"lightning.distance":  "lightningDistance",
	"lightning.timestamp": "lightningLastTime",
	"lightning.count":     "lightningCount",

	// co2: the WH45 combined air-quality sensor.
	"co2.temp":     "co2Temp",
	"co2.humidity": "co2Humidity",
	"co2.CO2":      "co2",
	"co2.CO2_24H":  "co2_24h",
	"co2.PM25":     "pm2_5",
	"co2.PM25_24H": "pm2_5_24h",
	"co2.PM10":     "pm10",
	"co2.PM10_24H": "pm10_24h",
	"co2.PM1":      "pm1",
	"co2.PM1_24H":  "pm1_24h",
	"co2.PM4":      "pm4",
	"co2.PM4_24H":  "pm4_24h",
}

// counterSpec names a cumulative record field and the per-interval delta
// field derived from it.
type counterSpec struct {
	// Source is the record field carrying the device's running total.
	Source string

	// Delta is the record field the computed per-interval delta is
	// published under.
	Delta string
}

// counterSpecs lists the running totals the device reports that consumers
// want as per-interval deltas. Yearly totals are used as the delta source
// because they reset least often; day, week and month totals roll over on
// the device's own clock.
var counterSpecs = []counterSpec{
	{Source: "yearRain", Delta: "rain"},
	{Source: "p_yearRain", Delta: "p_rain"},
	{Source: "lightningCount", Delta: "lightningStrikes"},
}

// mergeFieldMap overlays user entries onto the default map. A user entry
// with an empty name drops the field entirely.
func mergeFieldMap(overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaultFieldMap)+len(overrides))
	for key, name := range defaultFieldMap {
		merged[key] = name
	}
	for key, name := range overrides {
		if name == "" {
			delete(merged, key)
			continue
		}
		merged[key] = name
	}
	return merged
}
