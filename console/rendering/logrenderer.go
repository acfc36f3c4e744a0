package rendering

import (
	log "github.com/sirupsen/logrus"
)

// LogRenderer is a headless Renderer that writes every view to the log. It
// backs the service binaries, a richer presentation layer plugs in through
// the same interface.
type LogRenderer struct{}

func NewLogRenderer() *LogRenderer {
	return &LogRenderer{}
}

func (r *LogRenderer) RenderOperatorList(view OperatorListView) {
	log.WithFields(log.Fields{
		"page":    view.Page,
		"filter":  view.Filter,
		"rows":    len(view.Rows),
		"hasMore": view.HasMore,
	}).Info("operator list")

	for _, row := range view.Rows {
		log.WithFields(log.Fields{
			"operator":   row.ID,
			"name":       row.DisplayName,
			"value":      row.TotalValue,
			"delegators": row.DelegatorCount,
		}).Info("operator")
	}
}

func (r *LogRenderer) RenderOperatorDetail(view OperatorDetailView) {
	entry := log.WithFields(log.Fields{
		"operator":    view.ID,
		"name":        view.DisplayName,
		"totalValue":  view.TotalValue,
		"weightedApy": view.WeightedAPY,
		"distributed": view.Distributed,
		"myStake":     view.MyStake,
		"delegators":  view.DelegatorCount,
		"history":     len(view.History),
		"chartDays":   len(view.StakeHistory),
	})

	if view.DataAnomaly {
		entry = entry.WithField("dataAnomaly", true)
	}

	if view.HistoryError != "" {
		entry = entry.WithField("historyError", view.HistoryError)
	}

	entry.Info("operator detail")
}

func (r *LogRenderer) RenderFrame(view FrameView) {
	log.WithFields(log.Fields{
		"day":     view.Day,
		"frame":   view.Index + 1,
		"total":   view.Total,
		"playing": view.Playing,
	}).Info("timeline frame")

	for _, row := range view.Rows {
		log.WithFields(log.Fields{
			"rank":     row.Rank,
			"operator": row.DisplayName,
			"value":    row.Value,
		}).Info("ranking")
	}
}

func (r *LogRenderer) Notify(level NotificationLevel, message string) {
	switch level {
	case LevelError:
		log.Error(message)
	case LevelWarning:
		log.Warn(message)
	default:
		log.Info(message)
	}
}
