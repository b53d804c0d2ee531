package protocol

import "fmt"

// ResultKind is the single-byte tag that leads every reply payload. Like Op,
// the numbering is wire contract.
type ResultKind byte

const (
	RepoCreated           ResultKind = 0x00
	RepoDropped           ResultKind = 0x01
	RepoEmpty             ResultKind = 0x02
	RepoNotFound          ResultKind = 0x03
	DbCreated             ResultKind = 0x04
	DbDropped             ResultKind = 0x05
	DbListed              ResultKind = 0x06
	DbEmpty               ResultKind = 0x07
	DbNotFound            ResultKind = 0x08
	DbAlreadyExists       ResultKind = 0x09
	DocumentCreated       ResultKind = 0x0a
	DocumentDropped       ResultKind = 0x0b
	DocumentListed        ResultKind = 0x0c
	DocumentEmpty         ResultKind = 0x0d
	DocumentNotFound      ResultKind = 0x0e
	DocumentAlreadyExists ResultKind = 0x0f
	FieldInserted         ResultKind = 0x10
	FieldModified         ResultKind = 0x11
	FieldDropped          ResultKind = 0x12
	FieldContents         ResultKind = 0x13
	FieldListed           ResultKind = 0x14
	FieldNotFound         ResultKind = 0x15
	FieldAlreadyExists    ResultKind = 0x16
	Committed             ResultKind = 0x17
	PermissionDenied      ResultKind = 0x18
	NotExecuted           ResultKind = 0x19
	EncounteredErrors     ResultKind = 0x1a
)

func (k ResultKind) String() string {
	switch k {
	case RepoCreated:
		return "RepoCreated"
	case RepoDropped:
		return "RepoDropped"
	case RepoEmpty:
		return "RepoEmpty"
	case RepoNotFound:
		return "RepoNotFound"
	case DbCreated:
		return "DbCreated"
	case DbDropped:
		return "DbDropped"
	case DbListed:
		return "DbList"
	case DbEmpty:
		return "DbEmpty"
	case DbNotFound:
		return "DbNotFound"
	case DbAlreadyExists:
		return "DbAlreadyExists"
	case DocumentCreated:
		return "DocumentCreated"
	case DocumentDropped:
		return "DocumentDropped"
	case DocumentListed:
		return "DocumentList"
	case DocumentEmpty:
		return "DocumentEmpty"
	case DocumentNotFound:
		return "DocumentNotFound"
	case DocumentAlreadyExists:
		return "DocumentAlreadyExists"
	case FieldInserted:
		return "FieldInserted"
	case FieldModified:
		return "FieldModified"
	case FieldDropped:
		return "FieldDropped"
	case FieldContents:
		return "FieldContents"
	case FieldListed:
		return "FieldList"
	case FieldNotFound:
		return "FieldNotFound"
	case FieldAlreadyExists:
		return "FieldAlreadyExists"
	case Committed:
		return "Committed"
	case PermissionDenied:
		return "PermissionDenied"
	case NotExecuted:
		return "NotExecuted"
	case EncounteredErrors:
		return "EncounteredErrors"
	default:
		return fmt.Sprintf("ResultKind(0x%02x)", byte(k))
	}
}

// Result is one operation outcome. At most one of the payload fields is
// populated, selected by Kind (acknowledgements carry none): Names for DbListed/DocumentListed, Fields for
// FieldListed, Data for FieldContents, Message for EncounteredErrors.
type Result struct {
	Kind    ResultKind
	Names   []string
	Fields  [][]byte
	Data    []byte
	Message string
}

// Ack builds a payload-free result.
func Ack(kind ResultKind) *Result {
	return &Result{Kind: kind}
}

// NameList builds a DbListed or DocumentListed result.
func NameList(kind ResultKind, names []string) *Result {
	return &Result{Kind: kind, Names: names}
}

// FieldKeys builds a FieldListed result.
func FieldKeys(keys [][]byte) *Result {
	return &Result{Kind: FieldListed, Fields: keys}
}

// Contents builds a FieldContents result.
func Contents(data []byte) *Result {
	return &Result{Kind: FieldContents, Data: data}
}

// Errors builds an EncounteredErrors result carrying a diagnostic string.
func Errors(message string) *Result {
	return &Result{Kind: EncounteredErrors, Message: message}
}

// OpError builds an EncounteredErrors result in the bracketed server form.
func OpError(op Op, tag string) *Result {
	return Errors(ErrorMessage(op, tag))
}

// Marshal encodes the result as its tag byte followed by the payload, if
// the kind carries one.
func (r *Result) Marshal() []byte {
	buf := []byte{byte(r.Kind)}
	switch r.Kind {
	case DbListed, DocumentListed:
		items := make([][]byte, len(r.Names))
		for i, name := range r.Names {
			items[i] = []byte(name)
		}
		buf = appendList(buf, items)
	case FieldListed:
		buf = appendList(buf, r.Fields)
	case FieldContents:
		buf = appendBytes(buf, r.Data)
	case EncounteredErrors:
		buf = appendString(buf, r.Message)
	}
	return buf
}

// UnmarshalResult decodes one framed reply payload.
func UnmarshalResult(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrMalformed)
	}

	res := &Result{Kind: ResultKind(data[0])}
	rest := data[1:]
	var err error

	switch res.Kind {
	case DbListed, DocumentListed:
		var items [][]byte
		if items, rest, err = readList(rest); err != nil {
			return nil, fmt.Errorf("%s: %w", res.Kind, err)
		}
		res.Names = make([]string, len(items))
		for i, item := range items {
			res.Names[i] = string(item)
		}
	case FieldListed:
		if res.Fields, rest, err = readList(rest); err != nil {
			return nil, fmt.Errorf("%s: %w", res.Kind, err)
		}
	case FieldContents:
		if res.Data, rest, err = readBytes(rest); err != nil {
			return nil, fmt.Errorf("%s: %w", res.Kind, err)
		}
	case EncounteredErrors:
		if res.Message, rest, err = readString(rest); err != nil {
			return nil, fmt.Errorf("%s: %w", res.Kind, err)
		}
	case RepoCreated, RepoDropped, RepoEmpty, RepoNotFound,
		DbCreated, DbDropped, DbEmpty, DbNotFound, DbAlreadyExists,
		DocumentCreated, DocumentDropped, DocumentEmpty, DocumentNotFound, DocumentAlreadyExists,
		FieldInserted, FieldModified, FieldDropped, FieldNotFound, FieldAlreadyExists,
		Committed, PermissionDenied, NotExecuted:
		// no payload
	default:
		return nil, fmt.Errorf("%w: unknown result tag 0x%02x", ErrMalformed, data[0])
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformed, res.Kind, len(rest))
	}
	return res, nil
}
