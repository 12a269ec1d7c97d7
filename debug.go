package flowline

// debugLog logs the stats of the last rebuild at debug level.
func (l *Layer) debugLog() {
	s := l.stats
	Logger().Debug("flowline: rebuild",
		"graphics", s.Graphics,
		"skipped", s.Skipped,
		"vertices", s.Vertices,
		"indices", s.Indices,
		"center", l.frame.Center(),
		"took", s.LastRebuild,
	)
}
