// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/distributed_locks"

var ErrLockTimeout = errors.New("timeout waiting for lock")

// Conn 是 go-zookeeper 的连接，锁只依赖下面这些方法。
type Conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Connect 建立会话并等待第一次连接成功。
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	deadline := time.After(sessionTimeout)
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				return conn, nil
			}
		case <-deadline:
			conn.Close()
			return nil, errors.Errorf("zookeeper session not established within %s", sessionTimeout)
		}
	}
}

// DistributedLock 是基于临时顺序节点的公平锁：序号最小者持有锁，其余只监听前一个节点。
type DistributedLock struct {
	conn     Conn
	path     string
	lockNode string
}

func NewDistributedLock(conn Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		if err := ensureNode(conn, p); err != nil {
			return nil, err
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensureNode(conn Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "check %s", path)
	}
	if exists {
		return nil
	}
	if _, err := conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		return errors.Wrapf(err, "create %s", path)
	}
	return nil
}

// Lock 阻塞直到获得锁或 ctx 结束。
func (l *DistributedLock) Lock(ctx context.Context) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath
	myName := nodePath[strings.LastIndex(nodePath, "/")+1:]

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return l.abandon(errors.Wrap(err, "list lock nodes"))
		}
		// protected 节点带有 _c_<guid>- 前缀，按序号部分排序
		sort.Slice(children, func(i, j int) bool { return sequence(children[i]) < sequence(children[j]) })

		idx := -1
		for i, child := range children {
			if child == myName {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			return l.abandon(errors.New("lock node disappeared, session may have expired"))
		case idx == 0:
			return nil
		}

		exists, _, watch, err := l.conn.ExistsW(l.path + "/" + children[idx-1])
		if err != nil {
			return l.abandon(errors.Wrap(err, "watch previous node"))
		}
		if !exists {
			continue
		}
		select {
		case <-watch:
		case <-ctx.Done():
			return l.abandon(ErrLockTimeout)
		}
	}
}

// Unlock 释放锁，未持有时是 no-op。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return nil
	}
	err := l.conn.Delete(l.lockNode, -1)
	l.lockNode = ""
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	return nil
}

func (l *DistributedLock) abandon(cause error) error {
	_ = l.Unlock()
	return cause
}

func sequence(node string) string {
	if i := strings.LastIndex(node, "lock-"); i >= 0 {
		return node[i+len("lock-"):]
	}
	return node
}
