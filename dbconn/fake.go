package dbconn

import "context"

// FakeConn stands in for a connection in tests which never touch a database.
type FakeConn struct {
	id ID
}

var _ Conn = FakeConn{}

func MakeFakeConn(id ID) FakeConn {
	return FakeConn{id: id}
}

func (f FakeConn) ID() ID {
	return f.id
}

func (f FakeConn) Close(ctx context.Context) error {
	return nil
}

func (f FakeConn) Clone(ctx context.Context) (Conn, error) {
	return f, nil
}

func (f FakeConn) Database() string {
	return string(f.id)
}

func (f FakeConn) ConnStr() string {
	return "fake://"
}

func (f FakeConn) Dialect() Dialect {
	return DialectFake
}
