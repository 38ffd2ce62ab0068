// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pmicd publishes the PMIC power status to redis.
package pmicd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	redigo "github.com/garyburd/redigo/redis"
	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"

	"github.com/platinasystems/rsbpmic/cmd"
	"github.com/platinasystems/rsbpmic/internal/axp803"
	"github.com/platinasystems/rsbpmic/internal/sunxi"
	"github.com/platinasystems/rsbpmic/lang"
)

const (
	Name            = "pmicd"
	DefaultInterval = 5 * time.Second
)

type Command struct {
	// Init is run once before the PMIC is attached.
	Init func()
	// Bases of the SoC blocks; default, sunxi.DefaultBases
	Bases *sunxi.Bases
	// PMIC, if set, is polled instead of attaching one.
	PMIC *axp803.PMIC
	// Interval between polls, unless -interval; default, DefaultInterval
	Interval time.Duration
	// Mirror is an optional peer redis, "HOST:PORT", that is also sent the
	// changed facts.
	Mirror string

	initOnce  sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	stop      chan struct{}

	pub     *publisher.Publisher
	publish func(key, value string)
	last    map[string]string
	lastErr string

	dial    func() (redigo.Conn, error)
	backoff *backoff.Backoff
	// mirror dials are skipped until retry
	retry time.Time
	// stale is set while the mirror has missed changes
	stale bool
}

func (*Command) String() string { return Name }

func (*Command) Usage() string { return Name + " [-interval DURATION]" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "PMIC status daemon, publishes to redis",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Periodically read the PMIC status and publish any change of:

	pmic.vbus		present or absent
	pmic.battery		present or absent
	pmic.battery.voltage	>3.5V or <3.5V
	pmic.battery.state	charging or discharging
	pmic.battery.safe	true or false
	pmic.power_up		POK and/or USB
	pmic.uvlo		true if the PMIC saw an under voltage lockout

	The power up reason is cleared on read so is only published once.

OPTIONS
	-interval DURATION	between status reads, e.g. 10s; default 5s`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.Daemon }

func (c *Command) Close() error {
	c.closeOnce.Do(func() { close(c.stopch()) })
	return nil
}

func (c *Command) Main(args ...string) error {
	parm, args := parms.New(args, "-interval")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if s := parm.ByName["-interval"]; len(s) > 0 {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("%s: invalid interval", s)
		}
		interval = d
	}

	if c.Init != nil {
		c.initOnce.Do(c.Init)
	}

	if err := redis.IsReady(); err != nil {
		log.Print("redis not ready")
		return err
	}

	var err error
	if c.pub, err = publisher.New(); err != nil {
		return err
	}
	defer c.pub.Close()
	c.publish = func(key, value string) {
		c.pub.Print(key, ": ", value)
	}

	p, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()

	log.Print("notice: ", Name, ": polling every ", interval)

	stop := c.stopch()
	c.update(p)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-t.C:
			c.update(p)
		}
	}
}

// open returns the given PMIC or attaches one; call done after the last
// poll.
func (c *Command) open() (p *axp803.PMIC, done func() error, err error) {
	if c.PMIC != nil {
		return c.PMIC, func() error { return nil }, nil
	}
	bases := sunxi.DefaultBases
	if c.Bases != nil {
		bases = *c.Bases
	}
	p, soc, err := axp803.Open(bases)
	if err != nil {
		return nil, nil, err
	}
	return p, soc.Close, nil
}

func (c *Command) stopch() chan struct{} {
	c.stopOnce.Do(func() { c.stop = make(chan struct{}) })
	return c.stop
}

// update publishes the changed facts. A read failure is logged when it
// differs from the last.
func (c *Command) update(p *axp803.PMIC) {
	if c.last == nil {
		c.last = make(map[string]string)
	}
	s, err := p.ReadStatus()
	if err != nil {
		if e := err.Error(); e != c.lastErr {
			log.Print(Name, ": status: ", e)
			c.lastErr = e
		}
		return
	}
	c.lastErr = ""

	facts := Facts(s)
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var changed []string
	for _, k := range keys {
		v := facts[k]
		if last, found := c.last[k]; found && last == v {
			continue
		}
		c.publish(k, v)
		c.last[k] = v
		changed = append(changed, k)
	}
	// forget facts that are no longer reported, e.g. the power up reason,
	// so that they are published again if they recur
	for k := range c.last {
		if _, found := facts[k]; !found {
			delete(c.last, k)
		}
	}
	if len(c.Mirror) == 0 {
		return
	}
	if c.stale {
		changed = keys
	}
	if len(changed) > 0 {
		c.mirror(facts, changed)
	}
}

// mirror sends the keyed facts to the peer redis. After a failure, the peer
// isn't dialed again until the backoff has passed, then it's sent every
// fact.
func (c *Command) mirror(facts map[string]string, keys []string) {
	if c.backoff == nil {
		c.backoff = &backoff.Backoff{
			Min:    1 * time.Second,
			Max:    60 * time.Second,
			Factor: 2,
			Jitter: false,
		}
	}
	now := time.Now()
	if now.Before(c.retry) {
		c.stale = true
		return
	}
	err := c.hset(facts, keys)
	if err != nil {
		log.Print(Name, ": ", c.Mirror, ": ", err)
		c.retry = now.Add(c.backoff.Duration())
		c.stale = true
		return
	}
	c.backoff.Reset()
	c.stale = false
}

func (c *Command) hset(facts map[string]string, keys []string) error {
	dial := c.dial
	if dial == nil {
		dial = func() (redigo.Conn, error) {
			return redigo.Dial("tcp", c.Mirror)
		}
	}
	d, err := dial()
	if err != nil {
		return err
	}
	defer d.Close()
	for _, k := range keys {
		if _, err = d.Do("HSET", redis.DefaultHash, k, facts[k]); err != nil {
			return err
		}
	}
	return nil
}

// Facts maps the status to redis keys and values. The battery details are
// empty if it's absent; power up and UVLO are only present if set.
func Facts(s axp803.Status) map[string]string {
	facts := map[string]string{
		"pmic.vbus":            presence(s.VBUS()),
		"pmic.battery":         presence(s.Battery()),
		"pmic.battery.voltage": "",
		"pmic.battery.state":   "",
		"pmic.battery.safe":    "",
	}
	if s.Battery() {
		if s.BatteryHigh() {
			facts["pmic.battery.voltage"] = ">3.5V"
		} else {
			facts["pmic.battery.voltage"] = "<3.5V"
		}
		if s.Charging() {
			facts["pmic.battery.state"] = "charging"
		} else {
			facts["pmic.battery.state"] = "discharging"
		}
		facts["pmic.battery.safe"] = strconv.FormatBool(s.SafeMode())
	}
	var up []string
	if s.PowerUpByPOK() {
		up = append(up, "POK")
	}
	if s.PowerUpByUSB() {
		up = append(up, "USB")
	}
	if len(up) > 0 {
		facts["pmic.power_up"] = strings.Join(up, ",")
	}
	if s.UVLO() {
		facts["pmic.uvlo"] = "true"
	}
	return facts
}

func presence(t bool) string {
	if t {
		return "present"
	}
	return "absent"
}
