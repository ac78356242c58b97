package binc

import "fmt"

// Wire message ids for the sync protocol (§4.6). Message ids are single
// unsigned bytes, not varints, since the protocol frames only one of them
// per message.
const (
	msgDisconnect   = 0
	msgListFiles    = 1
	msgGetFileData  = 2
	msgCreateFile   = 3
	msgAppendFile   = 4
)

// RequestKind discriminates Request.
type RequestKind int

const (
	ReqDisconnect RequestKind = iota
	ReqListFiles
	ReqGetFileData
	ReqCreateFile
	ReqAppendFile
)

// Request is a client-to-server sync protocol message.
type Request struct {
	Kind RequestKind

	Path         string
	FromRevision int
	ToRevision   int
	Bytes        []byte
}

func ListFilesRequest(path string) Request { return Request{Kind: ReqListFiles, Path: path} }
func GetFileDataRequest(path string, fromRevision int) Request {
	return Request{Kind: ReqGetFileData, Path: path, FromRevision: fromRevision}
}
func CreateFileRequest(path string) Request { return Request{Kind: ReqCreateFile, Path: path} }
func AppendFileRequest(path string, fromRevision, toRevision int, data []byte) Request {
	return Request{Kind: ReqAppendFile, Path: path, FromRevision: fromRevision, ToRevision: toRevision, Bytes: data}
}
func DisconnectRequest() Request { return Request{Kind: ReqDisconnect} }

// WriteRequest serializes req to w.
func WriteRequest(w writer, req Request) error {
	switch req.Kind {
	case ReqDisconnect:
		return writeU8(w, msgDisconnect)
	case ReqListFiles:
		if err := writeU8(w, msgListFiles); err != nil {
			return err
		}
		return writeString(w, req.Path)
	case ReqGetFileData:
		if err := writeU8(w, msgGetFileData); err != nil {
			return err
		}
		if err := writeLength(w, req.FromRevision); err != nil {
			return err
		}
		return writeString(w, req.Path)
	case ReqCreateFile:
		if err := writeU8(w, msgCreateFile); err != nil {
			return err
		}
		return writeString(w, req.Path)
	case ReqAppendFile:
		if err := writeU8(w, msgAppendFile); err != nil {
			return err
		}
		if err := writeLength(w, req.FromRevision); err != nil {
			return err
		}
		if err := writeLength(w, req.ToRevision); err != nil {
			return err
		}
		if err := writeString(w, req.Path); err != nil {
			return err
		}
		return writeBytes(w, req.Bytes)
	default:
		return fmt.Errorf("unwritable request kind %d", req.Kind)
	}
}

// ReadRequest decodes one request from r.
func ReadRequest(r reader) (Request, error) {
	id, err := readU8(r)
	if err != nil {
		return Request{}, err
	}
	switch id {
	case msgDisconnect:
		return DisconnectRequest(), nil
	case msgListFiles:
		path, err := readString(r)
		if err != nil {
			return Request{}, err
		}
		return ListFilesRequest(path), nil
	case msgGetFileData:
		from, err := readLength(r)
		if err != nil {
			return Request{}, err
		}
		path, err := readString(r)
		if err != nil {
			return Request{}, err
		}
		return GetFileDataRequest(path, from), nil
	case msgCreateFile:
		path, err := readString(r)
		if err != nil {
			return Request{}, err
		}
		return CreateFileRequest(path), nil
	case msgAppendFile:
		from, err := readLength(r)
		if err != nil {
			return Request{}, err
		}
		to, err := readLength(r)
		if err != nil {
			return Request{}, err
		}
		path, err := readString(r)
		if err != nil {
			return Request{}, err
		}
		data, err := readBytes(r)
		if err != nil {
			return Request{}, err
		}
		return AppendFileRequest(path, from, to, data), nil
	default:
		return Request{}, fmt.Errorf("message id %d: %w", id, ErrUnsupportedMessage)
	}
}

// ResponseKind discriminates Response.
type ResponseKind int

const (
	RespListFiles ResponseKind = iota
	RespGetFileData
	RespCreateFile
	RespAppendFile
)

// Response is a server-to-client sync protocol message.
type Response struct {
	Kind ResponseKind

	Files        []string
	FromRevision int
	ToRevision   int
	Bytes        []byte
	Err          string
}

func ListFilesResponse(files []string) Response { return Response{Kind: RespListFiles, Files: files} }
func GetFileDataResponse(from, to int, data []byte) Response {
	return Response{Kind: RespGetFileData, FromRevision: from, ToRevision: to, Bytes: data}
}
func CreateFileOK() Response          { return Response{Kind: RespCreateFile} }
func CreateFileError(msg string) Response { return Response{Kind: RespCreateFile, Err: msg} }
func AppendFileOK() Response          { return Response{Kind: RespAppendFile} }
func AppendFileError(msg string) Response { return Response{Kind: RespAppendFile, Err: msg} }

// Ok reports whether a CreateFile/AppendFile response indicates success.
func (resp Response) Ok() bool { return resp.Err == "" }

// WriteResponse serializes resp to w.
func WriteResponse(w writer, resp Response) error {
	switch resp.Kind {
	case RespListFiles:
		if err := writeU8(w, msgListFiles); err != nil {
			return err
		}
		return writeStringArray(w, resp.Files)
	case RespGetFileData:
		if err := writeU8(w, msgGetFileData); err != nil {
			return err
		}
		if err := writeLength(w, resp.FromRevision); err != nil {
			return err
		}
		if err := writeLength(w, resp.ToRevision); err != nil {
			return err
		}
		return writeBytes(w, resp.Bytes)
	case RespCreateFile:
		if err := writeU8(w, msgCreateFile); err != nil {
			return err
		}
		return writeResultField(w, resp.Err)
	case RespAppendFile:
		if err := writeU8(w, msgAppendFile); err != nil {
			return err
		}
		return writeResultField(w, resp.Err)
	default:
		return fmt.Errorf("unwritable response kind %d", resp.Kind)
	}
}

func writeResultField(w writer, errMsg string) error {
	if errMsg == "" {
		return writeBool(w, true)
	}
	if err := writeBool(w, false); err != nil {
		return err
	}
	return writeString(w, errMsg)
}

func readResultField(r reader) (string, error) {
	ok, err := readBool(r)
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	return readString(r)
}

// ReadResponse decodes one response from r.
func ReadResponse(r reader) (Response, error) {
	id, err := readU8(r)
	if err != nil {
		return Response{}, err
	}
	switch id {
	case msgListFiles:
		files, err := readStringArray(r)
		if err != nil {
			return Response{}, err
		}
		return ListFilesResponse(files), nil
	case msgGetFileData:
		from, err := readLength(r)
		if err != nil {
			return Response{}, err
		}
		to, err := readLength(r)
		if err != nil {
			return Response{}, err
		}
		data, err := readBytes(r)
		if err != nil {
			return Response{}, err
		}
		return GetFileDataResponse(from, to, data), nil
	case msgCreateFile:
		errMsg, err := readResultField(r)
		if err != nil {
			return Response{}, err
		}
		if errMsg == "" {
			return CreateFileOK(), nil
		}
		return CreateFileError(errMsg), nil
	case msgAppendFile:
		errMsg, err := readResultField(r)
		if err != nil {
			return Response{}, err
		}
		if errMsg == "" {
			return AppendFileOK(), nil
		}
		return AppendFileError(errMsg), nil
	default:
		return Response{}, fmt.Errorf("message id %d: %w", id, ErrUnsupportedMessage)
	}
}
