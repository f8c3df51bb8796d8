package audit

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgproto3/v2"
	log "github.com/sirupsen/logrus"
)

const slotName = "gdal_image_service_slot"
const outputPlugin = "pgoutput"
const publicationName = "gdal_image_service_jobs"

var relation = struct {
	Name    string
	Columns []string
}{}

// TailJobChanges captures row-level changes to the jobs table over logical
// replication and logs them. Requires wal_level=logical on the server; every
// setup failure is logged and the tail simply stops.
func TailJobChanges(url string) {
	url += "&replication=database"
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	conn, err := pgconn.Connect(ctx, url)
	if err != nil {
		log.WithError(err).Error("Failed to open replication connection")
		return
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "DROP PUBLICATION IF EXISTS "+publicationName+";").ReadAll(); err != nil {
		log.WithError(err).Warn("Failed to drop publication")
	}
	if _, err := conn.Exec(ctx, "CREATE PUBLICATION "+publicationName+" FOR TABLE jobs;").ReadAll(); err != nil {
		log.WithError(err).Error("Failed to create publication")
		return
	}

	if _, err = pglogrepl.CreateReplicationSlot(ctx, conn, slotName, outputPlugin, pglogrepl.CreateReplicationSlotOptions{Temporary: true}); err != nil {
		log.WithError(err).Error("Failed to create replication slot")
		return
	}

	var msgPointer pglogrepl.LSN
	pluginArguments := []string{"proto_version '1'", "publication_names '" + publicationName + "'"}

	err = pglogrepl.StartReplication(ctx, conn, slotName, msgPointer, pglogrepl.StartReplicationOptions{PluginArgs: pluginArguments})
	if err != nil {
		log.WithError(err).Error("Failed to start replication")
		return
	}

	log.Info("Tailing job table changes")

	var pingTime time.Time
	for ctx.Err() != context.Canceled {
		if time.Now().After(pingTime) {
			if err = pglogrepl.SendStandbyStatusUpdate(ctx, conn, pglogrepl.StandbyStatusUpdate{WALWritePosition: msgPointer}); err != nil {
				log.WithError(err).Warn("Failed to send standby update")
			}
			pingTime = time.Now().Add(10 * time.Second)
		}

		receiveCtx, cancelReceive := context.WithTimeout(ctx, 10*time.Second)
		rawMsg, err := conn.ReceiveMessage(receiveCtx)
		cancelReceive()
		if pgconn.Timeout(err) {
			continue
		}
		if err != nil {
			log.WithError(err).Warn("Error receiving replication message")
			continue
		}

		copyData, ok := rawMsg.(*pgproto3.CopyData)
		if !ok {
			log.WithFields(log.Fields{
				"type": rawMsg,
			}).Debug("Unexpected replication message")
			continue
		}

		switch copyData.Data[0] {
		case pglogrepl.PrimaryKeepaliveMessageByteID:
			// standby confirmed
		case pglogrepl.XLogDataByteID:
			walLog, err := pglogrepl.ParseXLogData(copyData.Data[1:])
			if err != nil {
				log.WithError(err).Warn("Failed to parse WAL data")
				continue
			}
			handleWALMessage(walLog)
		}
	}
}

func handleWALMessage(walLog pglogrepl.XLogData) {
	msg, err := pglogrepl.Parse(walLog.WALData)
	if err != nil {
		log.WithError(err).Warn("Failed to parse logical replication message")
		return
	}

	switch m := msg.(type) {
	case *pglogrepl.RelationMessage:
		relation.Columns = []string{}
		for _, col := range m.Columns {
			relation.Columns = append(relation.Columns, col.Name)
		}
		relation.Name = m.RelationName
	case *pglogrepl.InsertMessage:
		logTuple("INSERT", m.Tuple)
	case *pglogrepl.UpdateMessage:
		logTuple("UPDATE", m.NewTuple)
	case *pglogrepl.DeleteMessage:
		logTuple("DELETE", m.OldTuple)
	case *pglogrepl.TruncateMessage:
		log.WithFields(log.Fields{
			"relation": relation.Name,
		}).Info("Job table truncated")
	}
}

func logTuple(op string, tuple *pglogrepl.TupleData) {
	if tuple == nil {
		return
	}

	var sb strings.Builder
	for i := 0; i < len(relation.Columns) && i < len(tuple.Columns); i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(relation.Columns[i])
		sb.WriteString("=")
		sb.Write(tuple.Columns[i].Data)
	}

	log.WithFields(log.Fields{
		"op":       op,
		"relation": relation.Name,
		"row":      sb.String(),
	}).Info("Job table change")
}
