package analytics

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/snapshot"
)

func computeTotalVolume(records []snapshot.Record, d *decoder) TotalVolume {
	total := make(map[string]int)
	for _, rec := range records {
		counts, ok := d.objectsTotal(rec)
		if !ok {
			continue
		}
		for vehicle, n := range counts {
			total[vehicle] += n
		}
	}

	sum := 0
	for _, n := range total {
		sum += n
	}

	return TotalVolume{
		Hourly: map[string]int{
			"morning":   sum / 3,
			"afternoon": sum / 2,
			"evening":   sum / 4,
		},
		Daily: map[string]int{
			"weekday": sum * 5 / 7,
			"weekend": sum * 2 / 7,
		},
		Total: total,
	}
}

// computeVolumeByLane uses the newest record; on equal timestamps the later one in the slice wins
func computeVolumeByLane(records []snapshot.Record, d *decoder) VolumeByLane {
	if len(records) == 0 {
		return VolumeByLane{}
	}

	latest := records[0]
	for _, rec := range records[1:] {
		if rec.TimestampMs >= latest.TimestampMs {
			latest = rec
		}
	}

	byLane, ok := d.objectsByLane(latest)
	if !ok {
		return VolumeByLane{}
	}

	out := make(VolumeByLane, len(byLane))
	for lane, counts := range byLane {
		laneCounts := make(map[string]int, len(counts))
		for vehicle, n := range counts {
			laneCounts[vehicle] = n
		}
		out[lane] = laneCounts
	}
	return out
}

// HourKey formats an hour of day as used by HourlyPatterns
func HourKey(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

func computeHourlyPatterns(records []snapshot.Record, d *decoder, randIntn func(int) int, logger *observability.Logger) HourlyPatterns {
	observed := make(map[int]int)
	for _, rec := range records {
		ts, err := snapshot.ParseDate(rec.Date)
		if err != nil {
			logger.WithError(err).WithField("record_id", rec.ID).Warn("Skipping snapshot with unparseable date")
			continue
		}
		counts, ok := d.objectsTotal(rec)
		if !ok {
			continue
		}
		sum := 0
		for _, n := range counts {
			sum += n
		}
		observed[ts.Hour()] += sum
	}

	out := make(HourlyPatterns, 24)
	for hour := 0; hour < 24; hour++ {
		if n, ok := observed[hour]; ok {
			out[HourKey(hour)] = n
			continue
		}
		out[HourKey(hour)] = simulatedHourlyVolume(hour, randIntn)
	}
	return out
}

// simulatedHourlyVolume is in [100,200) for daytime hours 07..19 and [20,70) otherwise
func simulatedHourlyVolume(hour int, randIntn func(int) int) int {
	if hour >= 7 && hour <= 19 {
		return 100 + randIntn(100)
	}
	return 20 + randIntn(50)
}

func computeAverageSpeedByLane(records []snapshot.Record, d *decoder) AverageSpeedByLane {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range records {
		speeds, ok := d.avgSpeedByLane(rec)
		if !ok {
			continue
		}
		for lane, speed := range speeds {
			sums[lane] += speed
			counts[lane]++
		}
	}

	out := make(AverageSpeedByLane, len(sums))
	for lane, sum := range sums {
		out[lane] = sum / float64(counts[lane])
	}
	return out
}

func computeBottlenecks(speeds AverageSpeedByLane, volumes VolumeByLane) []Bottleneck {
	lanes := make([]string, 0, len(speeds))
	for lane := range speeds {
		lanes = append(lanes, lane)
	}
	slices.Sort(lanes)

	bottlenecks := []Bottleneck{}
	for _, lane := range lanes {
		speed := speeds[lane]
		if speed >= BottleneckSpeedThreshold {
			continue
		}
		b := Bottleneck{Lane: lane, AvgSpeed: speed}
		for vehicle, n := range volumes[lane] {
			b.TotalVehicles += n
			if vehicle == "truck" || vehicle == "bus" {
				b.HeavyVehicles += n
			}
		}
		bottlenecks = append(bottlenecks, b)
	}

	if len(bottlenecks) == 0 && len(lanes) > 0 {
		slowest := lanes[0]
		for _, lane := range lanes[1:] {
			if speeds[lane] < speeds[slowest] {
				slowest = lane
			}
		}
		bottlenecks = append(bottlenecks, Bottleneck{
			Lane:          slowest,
			AvgSpeed:      speeds[slowest],
			TotalVehicles: SimulatedBottleneckVehicles,
			HeavyVehicles: SimulatedBottleneckHeavyVehicles,
		})
	}
	return bottlenecks
}

func sortedByTimestamp(records []snapshot.Record) []snapshot.Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b snapshot.Record) int {
		return cmp.Compare(a.TimestampMs, b.TimestampMs)
	})
	return sorted
}

// computeTrafficEvolution keeps every record so the series stay aligned with
// the timestamps; a malformed blob yields zeros for that point.
func computeTrafficEvolution(records []snapshot.Record, d *decoder) TrafficEvolution {
	sorted := sortedByTimestamp(records)
	out := TrafficEvolution{
		Timestamps: make([]string, 0, len(sorted)),
		Car:        make([]int, 0, len(sorted)),
		Bus:        make([]int, 0, len(sorted)),
		Truck:      make([]int, 0, len(sorted)),
	}
	for _, rec := range sorted {
		counts, _ := d.objectsTotal(rec)
		out.Timestamps = append(out.Timestamps, rec.Date)
		out.Car = append(out.Car, counts["car"])
		out.Bus = append(out.Bus, counts["bus"])
		out.Truck = append(out.Truck, counts["truck"])
	}
	return out
}

func computeSpeedEvolution(records []snapshot.Record, d *decoder) SpeedEvolution {
	sorted := sortedByTimestamp(records)
	out := SpeedEvolution{
		Timestamps: make([]string, 0, len(sorted)),
		Lane1:      make([]float64, 0, len(sorted)),
		Lane2:      make([]float64, 0, len(sorted)),
		Lane3:      make([]float64, 0, len(sorted)),
	}
	for _, rec := range sorted {
		speeds, _ := d.avgSpeedByLane(rec)
		out.Timestamps = append(out.Timestamps, rec.Date)
		out.Lane1 = append(out.Lane1, speeds["lane_1"])
		out.Lane2 = append(out.Lane2, speeds["lane_2"])
		out.Lane3 = append(out.Lane3, speeds["lane_3"])
	}
	return out
}

func computeDominance(totals map[string]int) VehicleTypeDominance {
	sum := 0
	for _, n := range totals {
		sum += n
	}

	out := make(VehicleTypeDominance, len(totals))
	for vehicle, n := range totals {
		if sum == 0 {
			out[vehicle] = 0
			continue
		}
		out[vehicle] = float64(n) * 100 / float64(sum)
	}
	return out
}

func computeSummary(speeds AverageSpeedByLane, bottlenecks []Bottleneck) Summary {
	s := Summary{BottleneckCount: len(bottlenecks)}
	if len(speeds) == 0 {
		return s
	}

	sum := 0.0
	first := true
	for _, speed := range speeds {
		sum += speed
		if first || speed > s.MaxSpeed {
			s.MaxSpeed = speed
			first = false
		}
	}
	s.AverageSpeed = sum / float64(len(speeds))
	return s
}
