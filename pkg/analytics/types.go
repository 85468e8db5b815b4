package analytics

// Cache keys, one per view
const (
	KeyTotalVolume          = "totalVolume"
	KeyVolumeByLane         = "volumeByLane"
	KeyHourlyPatterns       = "hourlyPatterns"
	KeyAvgSpeedByLane       = "avgSpeedByLane"
	KeyBottlenecks          = "bottlenecks"
	KeyTrafficEvolution     = "trafficEvolution"
	KeySpeedEvolution       = "speedEvolution"
	KeyVehicleTypeDominance = "vehicleTypeDominance"
	KeySummary              = "summary"
)

// BottleneckSpeedThreshold is the mean lane speed (km/h) below which a lane is congested
const BottleneckSpeedThreshold = 15.0

// Placeholder counts for the simulated bottleneck reported when no lane is congested
const (
	SimulatedBottleneckVehicles      = 30
	SimulatedBottleneckHeavyVehicles = 8
)

// TotalVolume holds per-type totals plus simulated hourly and daily splits
type TotalVolume struct {
	Hourly map[string]int `json:"hourly"`
	Daily  map[string]int `json:"daily"`
	Total  map[string]int `json:"total"`
}

// VolumeByLane maps lane -> vehicle type -> count for the latest snapshot
type VolumeByLane map[string]map[string]int

// HourlyPatterns maps "HH:00" to vehicle count, always 24 keys
type HourlyPatterns map[string]int

// AverageSpeedByLane maps lane -> mean km/h
type AverageSpeedByLane map[string]float64

// VehicleTypeDominance maps vehicle type -> share of all vehicles in percent
type VehicleTypeDominance map[string]float64

// Bottleneck is a congested lane
type Bottleneck struct {
	Lane          string  `json:"lane"`
	AvgSpeed      float64 `json:"avgSpeed"`
	TotalVehicles int     `json:"totalVehicles"`
	HeavyVehicles int     `json:"heavyVehicles"`
}

// TrafficEvolution is per-snapshot vehicle counts in timestamp order
type TrafficEvolution struct {
	Timestamps []string `json:"timestamps"`
	Car        []int    `json:"car"`
	Bus        []int    `json:"bus"`
	Truck      []int    `json:"truck"`
}

// SpeedEvolution is per-snapshot lane speeds in timestamp order
type SpeedEvolution struct {
	Timestamps []string  `json:"timestamps"`
	Lane1      []float64 `json:"lane_1"`
	Lane2      []float64 `json:"lane_2"`
	Lane3      []float64 `json:"lane_3"`
}

// Summary condenses lane speeds and congestion
type Summary struct {
	AverageSpeed    float64 `json:"averageSpeed"`
	MaxSpeed        float64 `json:"maxSpeed"`
	BottleneckCount int     `json:"bottleneckCount"`
}
