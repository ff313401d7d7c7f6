// internal/pkg/utils/net.go
package utils

import "net"

// GetOutboundIP 获取本机对外通信的 IP，用于服务注册。
// 通过拨一个 UDP "连接"来让内核选择出口网卡，不会产生真实流量。
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
