// Package scoring holds the pure adherence rules: the daily total, the
// adherence classifier, the monthly points aggregate, trend buckets, the
// calendar heatmap, range statistics and logging streaks. Nothing here does
// I/O; callers load rows and pass plain values in.
package scoring
