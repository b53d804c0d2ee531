package api

import (
	"github.com/turingdb/turingdb/pkg/metrics"
	"github.com/turingdb/turingdb/pkg/protocol"
	"github.com/turingdb/turingdb/pkg/storage"
)

// Dispatch routes one decoded command to its engine operation and folds any
// residual engine error into a reply. Every command produces exactly one
// result; nothing escapes toward the framing layer.
func Dispatch(engine *storage.Engine, cmd *protocol.Command) *protocol.Result {
	timer := metrics.NewTimer()

	res, err := route(engine, cmd)
	if err != nil {
		res = resultFromError(cmd.Op, err)
	}

	timer.ObserveDurationVec(metrics.OperationDuration, cmd.Op.String())
	metrics.OperationsTotal.WithLabelValues(cmd.Op.String(), res.Kind.String()).Inc()
	return res
}

func route(engine *storage.Engine, cmd *protocol.Command) (*protocol.Result, error) {
	switch cmd.Op {
	case protocol.OpRepoCreate:
		return engine.RepoCreate()
	case protocol.OpRepoDrop:
		return engine.RepoDrop()
	case protocol.OpDbCreate:
		return engine.DbCreate(cmd.Db)
	case protocol.OpDbList:
		return engine.DbList(), nil
	case protocol.OpDbDrop:
		return engine.DbDrop(cmd.Db)
	case protocol.OpDocumentCreate:
		return engine.DocumentCreate(cmd.Db, cmd.Document)
	case protocol.OpDocumentList:
		return engine.DocumentList(cmd.Db)
	case protocol.OpDocumentDrop:
		return engine.DocumentDrop(cmd.Db, cmd.Document)
	case protocol.OpFieldInsert:
		return engine.FieldInsert(cmd.Db, cmd.Document, []byte(cmd.Field), cmd.Payload)
	case protocol.OpFieldGet:
		return engine.FieldGet(cmd.Db, cmd.Document, []byte(cmd.Field))
	case protocol.OpFieldRemove:
		return engine.FieldRemove(cmd.Db, cmd.Document, []byte(cmd.Field))
	case protocol.OpFieldModify:
		return engine.FieldModify(cmd.Db, cmd.Document, []byte(cmd.Field), cmd.Payload)
	case protocol.OpFieldList:
		return engine.FieldList(cmd.Db, cmd.Document)
	default:
		return protocol.Ack(protocol.NotExecuted), nil
	}
}

// resultFromError maps a classified engine failure to its reply variant.
// Filesystem "not found" means the repository tree itself is gone out from
// under the registry, so it surfaces at the repo level.
func resultFromError(op protocol.Op, err error) *protocol.Result {
	switch storage.KindOf(err) {
	case storage.KindNotFound:
		return protocol.Ack(protocol.RepoNotFound)
	case storage.KindPermissionDenied:
		return protocol.Ack(protocol.PermissionDenied)
	default:
		return protocol.OpError(op, err.Error())
	}
}
