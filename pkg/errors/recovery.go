package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError は recover したパニックをエラーとして表現します。
// gonum/mat は次元不一致などでパニックするため、生成・学習の境界で使います。
type PanicError struct {
	Operation  string
	Value      interface{}
	StackTrace string
	// Cause はパニック前に返されていたエラー（なければ nil）
	Cause error
}

func (e *PanicError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("implantgen: panic in %s: %v (after: %v)", e.Operation, e.Value, e.Cause)
	}
	return fmt.Sprintf("implantgen: panic in %s: %v", e.Operation, e.Value)
}

func (e *PanicError) Unwrap() error {
	return e.Cause
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
// スタックトレースは長いため debug レベル以外では出しません。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("panic", fmt.Sprint(e.Value)).
		Str("type", "PanicError")
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		event.Str("stack", e.StackTrace)
	}
}

// NewPanicError はパニック値から PanicError を作成します。
func NewPanicError(operation string, value interface{}) *PanicError {
	return &PanicError{
		Operation:  operation,
		Value:      value,
		StackTrace: string(debug.Stack()),
	}
}

// Recover は defer で呼び出し、パニックを *err に変換します。
//
//	func (g *BoneLossGenerator) Generate() (out *Output, err error) {
//	    defer errors.Recover(&err, "BoneLossGenerator.Generate")
//	    ...
//	}
//
// 既にエラーが返されている場合は、そのエラーを Cause として保持します。
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	panicErr := NewPanicError(operation, r)
	panicErr.Cause = *err
	*err = errors.WithStack(panicErr)
}

// SafeExecute は fn を実行し、パニックを PanicError として返します。
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
