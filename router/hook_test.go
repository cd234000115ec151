package router

import "github.com/sarchlab/akita/v4/sim"

type hookFunc func(item interface{})

func (f hookFunc) Func(ctx sim.HookCtx) {
	f(ctx.Item)
}
