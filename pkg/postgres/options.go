package postgres

import "time"

type Option func(*Postgres)

func MaxPoolSize(size int) Option {
	return func(p *Postgres) {
		p.maxPoolSize = size
	}
}

func MaxOverflow(size int) Option {
	return func(p *Postgres) {
		p.maxOverflow = size
	}
}

func ConnLifetime(d time.Duration) Option {
	return func(p *Postgres) {
		p.connLifetime = d
	}
}

func ConnAttempts(attempts int) Option {
	return func(p *Postgres) {
		p.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Postgres) {
		p.connTimeout = timeout
	}
}
