package infer

import (
	"fmt"

	"github.com/grailbio/base/log"
)

// Debugf, Logf, and Panicf parameterize grailbio/base/log's leveled
// helpers on a Syntax node, prefixing every message with the node's
// source position -- gql.Debugf/gql.Logf/gql.Panicf (gql/log.go) play
// the same role for a gql.ASTNode. Logf here is kept at log.Error
// rather than gql.Logf's log.Info: every current call site (an unbound
// identifier, a worklist that failed to converge, a lift producing a
// looser type than the unlifted return) is a genuine error condition,
// and downgrading them to Info would bury them at the default log
// level.
func Debugf(n Syntax, format string, args ...interface{}) {
	if log.At(log.Debug) {
		log.Output(2, log.Debug, posPrefix(n)+fmt.Sprintf(format, args...))
	}
}

func Logf(n Syntax, format string, args ...interface{}) {
	log.Output(2, log.Error, posPrefix(n)+fmt.Sprintf(format, args...))
}

func Panicf(n Syntax, format string, args ...interface{}) {
	panic(posPrefix(n) + fmt.Sprintf(format, args...))
}

func posPrefix(n Syntax) string {
	if n == nil {
		return ""
	}
	return n.Pos().String() + ": "
}
