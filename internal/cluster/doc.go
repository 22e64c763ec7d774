// Package cluster finds particle showers in one calorimeter side.
//
// Pads that pass the cut policy are joined into towers: maximal sets of
// pads connected through neighbouring layers, rings and sectors, with the
// azimuth wrapping around and rings of different segmentation matched by
// nearest azimuth. Each tower is reduced to an energy and a direction and
// kept as a Cluster when it is large and energetic enough.
package cluster
