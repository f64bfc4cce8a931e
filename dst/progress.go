package dst

import "fmt"

func progressLine(numSamples int) string {
	return fmt.Sprintf("starting to fit tracker on %d samples", numSamples)
}

func cascadeProgressLine(stage int) string {
	return fmt.Sprintf("finished cascade %d", stage)
}
