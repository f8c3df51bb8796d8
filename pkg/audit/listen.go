package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/jobstore"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/syncutil"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// Listen mirrors payloads from the jobs NOTIFY channel into the audit
// collection. Runs until service shutdown is signaled.
func Listen(conninfo string) {
	_, err := sql.Open("postgres", conninfo)
	if err != nil {
		log.WithError(err).Error("Failed to open listener connection")
		return
	}

	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.WithError(err).Warn("Postgres listener problem")
		}
	}

	listener := pq.NewListener(conninfo, 10*time.Second, time.Minute, reportProblem)
	if err := listener.Listen(jobstore.NotifyChannel); err != nil {
		log.WithError(err).Error("Failed to listen on jobs channel")
		return
	}
	defer listener.Close()

	log.Info("Start monitoring job notifications")
	for {
		if syncutil.SignaledServiceShutdown() {
			return
		}
		waitForNotification(listener)
	}
}

func waitForNotification(l *pq.Listener) {
	select {
	case n := <-l.Notify:
		if n == nil {
			// reconnect event
			return
		}

		var prettyJSON bytes.Buffer
		if err := json.Indent(&prettyJSON, []byte(n.Extra), "", "\t"); err != nil {
			log.WithError(err).Warn("Error processing notification JSON")
			return
		}

		if err := InsertEntity(context.Background(), n.Channel, prettyJSON.String(), "db"); err != nil {
			log.WithError(err).Warn("Error inserting audit entity")
			return
		}

		log.WithFields(log.Fields{
			"channel": n.Channel,
		}).Debug("Job notification audited")
	case <-time.After(90 * time.Second):
		log.Debug("Received no job events for 90 seconds, checking connection")
		go func() {
			l.Ping()
		}()
	}
}
