// Package gaugestat defines the gauge channels tracked by the logger,
// the samples taken from them, and the textual log record format
// used for the daily log files.
package gaugestat

// Channel describes one logical sensor signal. The set of channels is
// fixed; channels are compared by Name.
type Channel struct {
	// Name identifies the channel.
	Name string
	// Unit holds the physical unit of the recorded values.
	Unit string
	// Subdir holds the directory under a log base location that
	// holds this channel's day files.
	Subdir string
	// FileSuffix is appended to the date in the day file name.
	FileSuffix string
	// Header holds the header line written at the start of every
	// day file, without the trailing newline.
	Header string
	// NumValues holds the number of numeric fields in each record.
	NumValues int
}

var (
	// Chamber holds the pressure in the room-temperature chamber.
	Chamber = Channel{
		Name:       "chamber",
		Unit:       "Pa",
		Subdir:     "chamber_pressure",
		FileSuffix: "chamber",
		Header:     "timestamp,pressure_Pa",
		NumValues:  1,
	}
	// Dewar holds the pressure in the cryogenic dewar.
	Dewar = Channel{
		Name:       "dewar",
		Unit:       "Pa",
		Subdir:     "dewar_pressure",
		FileSuffix: "dewar",
		Header:     "timestamp,pressure_Pa",
		NumValues:  1,
	}
	// Foreline holds the roughing pressure read from the
	// convection gauge on the dewar foreline.
	Foreline = Channel{
		Name:       "foreline",
		Unit:       "Pa",
		Subdir:     "dewar_foreline",
		FileSuffix: "foreline",
		Header:     "timestamp,pressure_Pa",
		NumValues:  1,
	}
	// Temperatures holds the ICR and ICH thermistor temperatures,
	// recorded together in one file.
	Temperatures = Channel{
		Name:       "temperatures",
		Unit:       "C",
		Subdir:     "temperatures",
		FileSuffix: "temperature",
		Header:     "timestamp,T_ICR_C,T_ICH_C",
		NumValues:  2,
	}
)

// Channels holds all channels known to the logger, in the
// order they're conventionally written.
var Channels = []Channel{Chamber, Dewar, Foreline, Temperatures}
