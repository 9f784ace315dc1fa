package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/your-org/peoplecounter/internal/guard"
)

// Chart renders the per-minute crossing history as an HTML line chart.
func (h *CounterHandler) Chart(c *gin.Context) {
	snap, err := h.state.Snapshot(guard.WithFlow(c.Request.Context(), "chart"))
	if err != nil {
		respondError(c, err)
		return
	}

	data := make([]opts.LineData, 0, len(snap.Counts))
	for _, n := range snap.Counts {
		data = append(data, opts.LineData{Value: n})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "People Counter", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Line crossings per minute", Subtitle: snap.Timestamp}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "minute"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "crossings"}),
	)
	line.SetXAxis(snap.Labels).AddSeries("crossings", data)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
