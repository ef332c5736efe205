package iface

type Functor func()

type BalancerIterFunc func(key int, val IELoop) bool
