package models

import (
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Паттерны падения, распознаваемые детектором каскадов
const (
	PatternStrongDrop  = "strong"
	PatternExtremeDrop = "extreme"
	PatternCascade     = "cascade"
)

// CascadeEvent описывает подтвержденное кворумом событие каскада ликвидаций по одному активу
type CascadeEvent struct {
	Timestamp   time.Time
	Symbol      string
	Pattern     string
	Return1     float64
	Return2     float64
	Volume      float64
	VolumeHigh  float64 // порог высокого перцентиля объема
	AssetsCount int     // число активов с сигналом в тот же момент
}

// TradeRecord представляет одну смоделированную сделку. Создается один раз, не изменяется.
type TradeRecord struct {
	EntryTime     time.Time
	Symbol        string
	HoldingPeriod int
	GrossReturn   float64
	NetReturn     float64
}

// PerformanceSummary сводная статистика бэктеста
type PerformanceSummary struct {
	TradeCount       int
	TotalReturn      float64
	MeanReturn       float64
	AnnualizedReturn float64
	AnnualizedVol    float64
	SharpeRatio      float64
	MaxDrawdown      float64
	Alpha            float64
	Beta             float64
	RSquared         float64

	TradesPerYear  float64
	WinRate        float64
	FastExits      int
	SlowExits      int
	AlignedSamples int
	PeriodDays     float64

	// Флаги вырожденных случаев: значение статистики заменено нулем
	SharpeDegenerate  bool
	RegressionSkipped bool
}
