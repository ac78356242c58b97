package binc

import (
	"bytes"
	"context"
	"fmt"
	"net"
)

// Client is a raw request/response connection to a Server. One request is
// in flight at a time; the protocol is strictly synchronous.
type Client struct {
	conn   net.Conn
	closed bool
}

// Dial connects to a Server at addr ("host:port").
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Request sends req and returns the server's response. If ctx is done
// before the round trip completes, Request closes the connection (unblocking
// the in-flight read or write) and returns ctx.Err(); the Client is unusable
// afterward, matching the one-request-in-flight contract.
func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	if c.closed {
		return Response{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if err := WriteRequest(c.conn, req); err != nil {
			done <- result{err: err}
			return
		}
		resp, err := ReadResponse(c.conn)
		done <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = c.conn.Close()
		c.closed = true
		return Response{}, ctx.Err()
	case r := <-done:
		return r.resp, r.err
	}
}

// Close sends Disconnect and closes the underlying connection.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	_ = WriteRequest(c.conn, DisconnectRequest())
	return c.conn.Close()
}

// PersistentClient pairs a Client with a live Document, tracking how many
// revisions of the remote file have been pulled so that CheckForUpdates and
// CommitChanges only transfer the delta.
type PersistentClient struct {
	client          *Client
	path            string
	currentRevision int
}

// ConnectToDocument dials addr, fetches the full history of path, and
// returns a PersistentClient together with the Document it built.
func ConnectToDocument(ctx context.Context, addr, path string, opts DocumentOptions) (*PersistentClient, *Document, error) {
	client, err := Dial(addr)
	if err != nil {
		return nil, nil, err
	}

	resp, err := client.Request(ctx, GetFileDataRequest(path, 0))
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	if resp.Kind != RespGetFileData {
		client.Close()
		return nil, nil, ErrMalformedResponse
	}

	doc := NewDocument(opts)
	if len(resp.Bytes) > 0 {
		if err := doc.AppendAndApply(resp.Bytes); err != nil {
			client.Close()
			return nil, nil, err
		}
	}

	pc := &PersistentClient{
		client:          client,
		path:            path,
		currentRevision: resp.ToRevision,
	}
	return pc, doc, nil
}

// Close disconnects the underlying Client.
func (pc *PersistentClient) Close() error { return pc.client.Close() }

// CheckForUpdates pulls any revisions committed to the remote file since the
// last sync and applies them to doc.
func (pc *PersistentClient) CheckForUpdates(ctx context.Context, doc *Document) error {
	resp, err := pc.client.Request(ctx, GetFileDataRequest(pc.path, pc.currentRevision))
	if err != nil {
		return err
	}
	if resp.Kind != RespGetFileData {
		return ErrMalformedResponse
	}
	if resp.FromRevision != pc.currentRevision {
		return ErrRevisionMismatch
	}
	if resp.ToRevision > resp.FromRevision {
		if err := doc.AppendAndApply(resp.Bytes); err != nil {
			return err
		}
		pc.currentRevision = resp.ToRevision
	}
	return nil
}

// CommitChanges pushes every revision doc has committed locally since the
// last sync to the remote file, failing with ErrRevisionMismatch if the
// remote has moved on in the meantime (the caller should CheckForUpdates and
// retry).
func (pc *PersistentClient) CommitChanges(ctx context.Context, doc *Document) error {
	repo := doc.Repository()
	toRevision := len(repo.Revisions)
	fromRevision := pc.currentRevision
	if toRevision <= fromRevision {
		return nil
	}

	var buf bytes.Buffer
	if err := repo.WriteRange(&buf, fromRevision, toRevision); err != nil {
		return err
	}

	resp, err := pc.client.Request(ctx, AppendFileRequest(pc.path, fromRevision, toRevision, buf.Bytes()))
	if err != nil {
		return err
	}
	if resp.Kind != RespAppendFile {
		return ErrMalformedResponse
	}
	if !resp.Ok() {
		if resp.Err == ErrRevisionMismatch.Error() {
			return ErrRevisionMismatch
		}
		return fmt.Errorf("append rejected: %s", resp.Err)
	}
	pc.currentRevision = toRevision
	return nil
}
