// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"sort"
	"strings"
	"time"

	"atlas/internal/pkg/config"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/atlas/locks"

// Conn 封装 ZooKeeper 连接。
type Conn struct {
	conn *zk.Conn
}

// Connect 建立 ZooKeeper 会话。
func Connect(cfg config.ZookeeperConfig) (*Conn, error) {
	conn, _, err := zk.Connect(cfg.Addrs, cfg.SessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) Close() {
	c.conn.Close()
}

// ensurePath 逐级创建持久节点。
func (c *Conn) ensurePath(path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	current := ""
	for _, part := range parts {
		current += "/" + part
		_, err := c.conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return errors.Wrapf(err, "create node %s", current)
		}
	}
	return nil
}

// DistributedLock 是基于临时顺序节点的分布式锁。
// 订单清扫器用它保证同一时刻只有一个实例执行清扫，
// 避免水平扩容后多个实例同时扫到同一批过期订单。
type DistributedLock struct {
	conn     *Conn
	path     string
	lockNode string
}

// NewDistributedLock 创建资源 resourceID 上的锁。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	if err := conn.ensurePath(lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 尝试获取锁，最多等待 wait。
func (l *DistributedLock) Lock(wait time.Duration) error {
	nodePath, err := l.conn.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential lock node")
	}
	l.lockNode = nodePath

	deadline := time.Now().Add(wait)
	for {
		children, _, err := l.conn.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "list lock children")
		}
		sort.Strings(children)

		myNode := strings.TrimPrefix(l.lockNode, l.path+"/")
		if len(children) > 0 && myNode == children[0] {
			return nil
		}

		// 只监听排在自己前面的那个节点，避免惊群
		prev := ""
		for i, child := range children {
			if child == myNode && i > 0 {
				prev = children[i-1]
				break
			}
		}
		if prev == "" {
			return errors.New("lock node missing from children list")
		}

		exists, _, eventChan, err := l.conn.conn.ExistsW(l.path + "/" + prev)
		if err != nil {
			return errors.Wrap(err, "watch previous lock node")
		}
		if !exists {
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.abandon()
			return errors.New("timeout waiting for lock")
		}
		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(remaining):
			l.abandon()
			return errors.New("timeout waiting for lock")
		}
	}
}

// TryLock 非阻塞获取锁。未拿到时返回 false。
func (l *DistributedLock) TryLock() (bool, error) {
	if err := l.Lock(0); err != nil {
		return false, nil
	}
	return true, nil
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock held")
	}
	err := l.conn.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	l.lockNode = ""
	return nil
}

func (l *DistributedLock) abandon() {
	_ = l.conn.conn.Delete(l.lockNode, -1)
	l.lockNode = ""
}
