// RTMP server

package main

import (
	"crypto/tls"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// RTMPServer is the process-wide state shared by every session: the
// channel registry, session table, and the optional collaborators
// (control-plane connection, webhook, TLS loader) that sessions consult
// through nil-checked fields.
type RTMPServer struct {
	host string
	port int

	listener       net.Listener
	secureListener net.Listener

	mutex           *sync.Mutex
	sessions        map[uint64]*RTMPSession
	next_session_id uint64

	registry *ChannelRegistry

	streamIdMaxLength int

	validator Validator

	callbackURL  string
	jwtSecret    string
	jwtSubject   string
	outChunkSize uint32

	// clientTimeout bounds how long a successful Publish can wait for the
	// first demand_data before the session is closed (spec's "Await demand").
	clientTimeout time.Duration

	// newClientHandler is the configurable handle_new_client(actor_ref, app,
	// stream_key) callback: it returns the handler module a fresh publish
	// session hands its FLV events to. Nil disables C5 delivery entirely.
	newClientHandler ClientHandlerFactory

	websocketControlConnection *ControlServerConnection

	sslLoader *SslCertificateLoader

	closed bool
}

func CreateRTMPServer() *RTMPServer {
	loadDotEnv()

	server := &RTMPServer{
		mutex:             &sync.Mutex{},
		sessions:          make(map[uint64]*RTMPSession),
		next_session_id:   1,
		closed:            false,
		streamIdMaxLength: streamIdMaxLengthDefault,
		validator:         NewDefaultValidator(streamIdMaxLengthDefault),
		callbackURL:       os.Getenv("CALLBACK_URL"),
		jwtSecret:         os.Getenv("JWT_SECRET"),
		jwtSubject:        envOrDefault("CUSTOM_JWT_SUBJECT", "rtmp_event"),
		clientTimeout:     time.Duration(RTMP_CLIENT_TIMEOUT_DEFAULT) * time.Millisecond,
		newClientHandler:  DefaultClientHandlerFactory,
	}

	if customTimeout := os.Getenv("CLIENT_TIMEOUT_MS"); customTimeout != "" {
		if ct, e := strconv.Atoi(customTimeout); e == nil && ct > 0 {
			server.clientTimeout = time.Duration(ct) * time.Millisecond
		}
	}

	ipLimit := uint32(4)
	if customIPLimit := os.Getenv("MAX_IP_CONCURRENT_CONNECTIONS"); customIPLimit != "" {
		if cil, e := strconv.Atoi(customIPLimit); e == nil {
			ipLimit = uint32(cil)
		}
	}
	server.registry = NewChannelRegistry(ipLimit, concurrentLimitWhitelistFromEnv())

	server.outChunkSize = server.getOutChunkSize()

	bind_addr := os.Getenv("BIND_ADDRESS")
	server.host = envOrDefault("EXTERNAL_HOST", bind_addr)

	tcp_port := 1935
	if customTCPPort := os.Getenv("RTMP_PORT"); customTCPPort != "" {
		if tcpp, e := strconv.Atoi(customTCPPort); e == nil {
			tcp_port = tcpp
		}
	}
	server.port = tcp_port

	lTCP, errTCP := net.Listen("tcp", bind_addr+":"+strconv.Itoa(tcp_port))
	if errTCP != nil {
		LogError(errTCP)
		return nil
	}
	server.listener = lTCP
	LogInfo("[RTMP] Listening on " + bind_addr + ":" + strconv.Itoa(tcp_port))

	certFile := os.Getenv("SSL_CERT")
	keyFile := os.Getenv("SSL_KEY")

	if certFile != "" && keyFile != "" {
		reloadSeconds := 300
		if r := os.Getenv("SSL_RELOAD_SECONDS"); r != "" {
			if n, e := strconv.Atoi(r); e == nil && n > 0 {
				reloadSeconds = n
			}
		}

		loader, err := NewSslCertificateLoader(certFile, keyFile, reloadSeconds)
		if err != nil {
			LogError(err)
			server.listener.Close()
			return nil
		}
		server.sslLoader = loader
		go loader.RunReloadThread()

		ssl_port := 443
		if customSSLPort := os.Getenv("SSL_PORT"); customSSLPort != "" {
			if sslp, e := strconv.Atoi(customSSLPort); e == nil {
				ssl_port = sslp
			}
		}

		config := &tls.Config{GetCertificate: loader.GetCertificateFunc()}
		lnSSL, errSSL := tls.Listen("tcp", bind_addr+":"+strconv.Itoa(ssl_port), config)
		if errSSL != nil {
			LogError(errSSL)
			return nil
		}
		server.secureListener = lnSSL
		LogInfo("[SSL] Listening on " + bind_addr + ":" + strconv.Itoa(ssl_port))
	}

	controlConn := &ControlServerConnection{}
	controlConn.Initialize(server)
	if controlConn.enabled {
		server.websocketControlConnection = controlConn
	}

	return server
}

func envOrDefault(name string, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

func (server *RTMPServer) NextSessionID() uint64 {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	r := server.next_session_id
	server.next_session_id++
	return r
}

func (server *RTMPServer) AddSession(s *RTMPSession) {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	server.sessions[s.id] = s
}

func (server *RTMPServer) RemoveSession(id uint64) {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	delete(server.sessions, id)
}

func (server *RTMPServer) isPublishing(channel string) bool {
	return server.registry.isPublishing(channel)
}

func (server *RTMPServer) GetPublisher(channel string) *RTMPSession {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	server.registry.mutex.Lock()
	entry := server.registry.channels[channel]
	server.registry.mutex.Unlock()

	if entry == nil || !entry.is_publishing {
		return nil
	}

	return server.sessions[entry.publisher]
}

func (server *RTMPServer) SetPublisher(channel string, key string, stream_id string, s *RTMPSession) bool {
	return server.registry.SetPublisher(channel, key, stream_id, s)
}

func (server *RTMPServer) RemovePublisher(channel string) {
	server.registry.RemovePublisher(channel)
}

// KillAllActivePublishers disconnects every session currently publishing.
// Called after the control-plane connection is (re)established, since the
// coordinator has no memory of sessions that published while disconnected.
func (server *RTMPServer) KillAllActivePublishers() {
	server.mutex.Lock()
	sessions := make([]*RTMPSession, 0, len(server.sessions))
	for _, s := range server.sessions {
		sessions = append(sessions, s)
	}
	server.mutex.Unlock()

	for _, s := range sessions {
		if s.isPublishing {
			s.Kill()
		}
	}
}

func (server *RTMPServer) AcceptConnections(listener net.Listener, wg *sync.WaitGroup) {
	defer func() {
		listener.Close()
		wg.Done()
	}()
	for {
		c, err := listener.Accept()
		if err != nil {
			LogError(err)
			return
		}
		id := server.NextSessionID()
		var ip string
		if addr, ok := c.RemoteAddr().(*net.TCPAddr); ok {
			ip = addr.IP.String()
		} else {
			ip = c.RemoteAddr().String()
		}

		if !server.registry.isIPExempted(ip) {
			if !server.registry.AddIP(ip) {
				c.Close()
				LogRequest(id, ip, "Connection rejected: Too many requests")
				continue
			}
		}

		LogDebugSession(id, ip, "Connection accepted!")
		go server.HandleConnection(id, ip, c)
	}
}

func (server *RTMPServer) SendPings(wg *sync.WaitGroup) {
	defer wg.Done()
	for !server.closed {
		time.Sleep(RTMP_PING_TIME * time.Millisecond)

		func() {
			server.mutex.Lock()
			defer server.mutex.Unlock()

			for _, s := range server.sessions {
				s.SendPingRequest()
			}
		}()
	}
}

func (server *RTMPServer) Start() {
	var wg sync.WaitGroup
	if server.listener != nil {
		wg.Add(1)
		go server.AcceptConnections(server.listener, &wg)
	}

	if server.secureListener != nil {
		wg.Add(1)
		go server.AcceptConnections(server.secureListener, &wg)
	}

	wg.Add(1)
	go server.SendPings(&wg)

	wg.Wait()
}

func (server *RTMPServer) HandleConnection(id uint64, ip string, c net.Conn) {
	s := CreateRTMPSession(server, id, ip, c)

	server.AddSession(&s)

	defer func() {
		if err := recover(); err != nil {
			switch x := err.(type) {
			case string:
				LogRequest(id, ip, "Error: "+x)
			case error:
				LogRequest(id, ip, "Error: "+x.Error())
			default:
				LogRequest(id, ip, "Connection Crashed!")
			}
		}
		s.OnClose()
		c.Close()
		server.RemoveSession(id)
		server.registry.RemoveIP(ip)
		LogDebugSession(id, ip, "Connection closed!")
	}()

	s.HandleSession()
}

func (server *RTMPServer) getOutChunkSize() uint32 {
	r := os.Getenv("RTMP_CHUNK_SIZE")

	if r == "" {
		return RTMP_CHUNK_SIZE
	}

	n, e := strconv.Atoi(r)

	if e != nil || n <= RTMP_CHUNK_SIZE {
		return RTMP_CHUNK_SIZE
	}

	return uint32(n)
}
