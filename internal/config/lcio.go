package config

// GetLCIO returns the event I/O settings, never nil.
func (c *TuningConfig) GetLCIO() *LCIOConfig {
	if c.LCIO == nil {
		return &LCIOConfig{}
	}
	return c.LCIO
}

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func (l *LCIOConfig) GetHitCollection() string { return orDefault(l.HitCollection, "BeamCalCollection") }
func (l *LCIOConfig) GetMCCollection() string  { return orDefault(l.MCCollection, "MCParticle") }
func (l *LCIOConfig) GetClusterCollection() string {
	return orDefault(l.ClusterCollection, "BCalClusters")
}
func (l *LCIOConfig) GetRecoCollection() string { return orDefault(l.RecoCollection, "BCalRecoParticle") }
func (l *LCIOConfig) GetSideField() string      { return orDefault(l.SideField, "barrel") }
func (l *LCIOConfig) GetLayerField() string     { return orDefault(l.LayerField, "layer") }
func (l *LCIOConfig) GetRingField() string      { return orDefault(l.RingField, "cylinder") }
func (l *LCIOConfig) GetSectorField() string    { return orDefault(l.SectorField, "phi") }

// GetLayerOffset is subtracted from the decoded layer; cell IDs count
// layers from 1.
func (l *LCIOConfig) GetLayerOffset() int {
	if l.LayerOffset == nil {
		return 1
	}
	return *l.LayerOffset
}
