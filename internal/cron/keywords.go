package cron

// keywordPrefixes maps common reminder terms (Portuguese, Spanish, English)
// to short mnemonic prefixes. Matched case-insensitively against the job
// message; the first hit wins.
var keywordPrefixes = map[string]string{
	// health & medication
	"remédio":      "REM",
	"remedio":      "REM",
	"medicamento":  "MED",
	"medicina":     "MED",
	"medicine":     "MED",
	"pílula":       "PIL",
	"pilula":       "PIL",
	"pastilla":     "PIL",
	"pill":         "PIL",
	"vitamina":     "VIT",
	"vitamin":      "VIT",
	"insulina":     "INS",
	"insulin":      "INS",
	"médico":       "DOC",
	"medico":       "DOC",
	"doctor":       "DOC",
	"doutor":       "DOC",
	"consulta":     "CON",
	"appointment":  "APT",
	"dentista":     "DEN",
	"dentist":      "DEN",
	"exame":        "EXA",
	"examen":       "EXA",
	"exam":         "EXA",
	"vacina":       "VAC",
	"vacuna":       "VAC",
	"vaccine":      "VAC",
	"terapia":      "TER",
	"therapy":      "TER",
	"fisioterapia": "FIS",
	"psicólogo":    "PSI",
	"psicologo":    "PSI",
	"hospital":     "HOS",
	"farmácia":     "FAR",
	"farmacia":     "FAR",
	"pharmacy":     "FAR",

	// food & drink
	"água":      "AG",
	"agua":      "AG",
	"water":     "WT",
	"beber":     "BEB",
	"drink":     "DRK",
	"comer":     "COM",
	"comida":    "COM",
	"eat":       "EAT",
	"almoço":    "ALM",
	"almoco":    "ALM",
	"almuerzo":  "ALM",
	"lunch":     "LUN",
	"jantar":    "JAN",
	"cena":      "CEN",
	"dinner":    "DIN",
	"café":      "CAF",
	"cafe":      "CAF",
	"coffee":    "CAF",
	"lanche":    "LAN",
	"merienda":  "MER",
	"breakfast": "BRK",
	"receita":   "REC",
	"receta":    "REC",
	"recipe":    "REC",
	"cozinhar":  "COZ",
	"cocinar":   "COZ",
	"cook":      "CK",
	"forno":     "FOR",
	"horno":     "FOR",
	"oven":      "OV",
	"bolo":      "BOL",
	"pastel":    "PAS",
	"cake":      "CAK",
	"pão":       "PAO",
	"pan":       "PAN",
	"bread":     "BRD",
	"pizza":     "PIZ",
	"churrasco": "CHU",
	"feijão":    "FEI",
	"feijao":    "FEI",
	"arroz":     "ARZ",

	// errands & shopping
	"mercado":       "MRC",
	"supermercado":  "SUP",
	"supermarket":   "SUP",
	"compra":        "CPR",
	"comprar":       "CPR",
	"compras":       "CPR",
	"buy":           "BUY",
	"shopping":      "SHP",
	"feira":         "FER",
	"banco":         "BAN",
	"bank":          "BAN",
	"pagar":         "PAG",
	"pagamento":     "PAG",
	"pago":          "PAG",
	"pay":           "PAY",
	"boleto":        "BOL",
	"conta":         "CTA",
	"cuenta":        "CTA",
	"bill":          "BIL",
	"fatura":        "FAT",
	"factura":       "FAT",
	"aluguel":       "ALU",
	"alquiler":      "ALQ",
	"rent":          "RNT",
	"correio":       "COR",
	"correos":       "COR",
	"mail":          "ML",
	"encomenda":     "ENC",
	"pacote":        "PCT",
	"paquete":       "PCT",
	"package":       "PKG",
	"entrega":       "ENT",
	"delivery":      "DLV",
	"lavanderia":    "LAV",
	"laundry":       "LDY",
	"lixo":          "LIX",
	"basura":        "BAS",
	"trash":         "TRH",
	"limpeza":       "LIM",
	"limpiar":       "LIM",
	"limpar":        "LIM",
	"clean":         "CLN",
	"faxina":        "FAX",
	"gasolina":      "GAS",
	"combustível":   "GAS",
	"gas":           "GAS",
	"oficina":       "OFI",
	"mecânico":      "MEC",
	"mecanico":      "MEC",
	"mechanic":      "MEC",
	"carro":         "CAR",
	"coche":         "CCH",
	"moto":          "MOT",
	"estacionamento": "EST",
	"parking":       "PRK",

	// work & study
	"trabalho":     "TRB",
	"trabajo":      "TRB",
	"work":         "WRK",
	"reunião":      "RUN",
	"reuniao":      "RUN",
	"reunión":      "RUN",
	"reunion":      "RUN",
	"meeting":      "MTG",
	"call":         "CAL",
	"chamada":      "CHA",
	"llamada":      "LLA",
	"ligar":        "LIG",
	"llamar":       "LLA",
	"entrevista":   "ETV",
	"interview":    "ITV",
	"apresentação": "APR",
	"presentación": "PRE",
	"presentation": "PRE",
	"relatório":    "REL",
	"relatorio":    "REL",
	"reporte":      "REP",
	"report":       "REP",
	"email":        "EML",
	"projeto":      "PRJ",
	"proyecto":     "PRJ",
	"project":      "PRJ",
	"prazo":        "PRZ",
	"plazo":        "PLZ",
	"deadline":     "DLN",
	"aula":         "AUL",
	"clase":        "CLS",
	"class":        "CLS",
	"estudar":      "ETD",
	"estudiar":     "ETD",
	"study":        "STD",
	"prova":        "PRV",
	"curso":        "CUR",
	"course":       "CRS",
	"lição":        "LIC",
	"tarefa":       "TAR",
	"tarea":        "TAR",
	"homework":     "HMW",
	"faculdade":    "FAC",
	"universidad":  "UNI",
	"escola":       "ESC",
	"escuela":      "ESC",
	"school":       "SCH",

	// home & family
	"aniversário": "ANV",
	"aniversario": "ANV",
	"cumpleaños":  "CUM",
	"birthday":    "BDY",
	"presente":    "PRS",
	"regalo":      "REG",
	"gift":        "GFT",
	"festa":       "FES",
	"fiesta":      "FES",
	"party":       "PTY",
	"igreja":      "IGR",
	"iglesia":     "IGR",
	"church":      "CHR",
	"missa":       "MIS",
	"culto":       "CUL",
	"oração":      "ORA",
	"oracion":     "ORA",
	"prayer":      "PRY",
	"visita":      "VIS",
	"visit":       "VIS",
	"filho":       "FIL",
	"filha":       "FIL",
	"hijo":        "HIJ",
	"hija":        "HIJ",
	"mãe":         "MAE",
	"mae":         "MAE",
	"madre":       "MAD",
	"mother":      "MOM",
	"pai":         "PAI",
	"padre":       "PAD",
	"father":      "DAD",
	"avó":         "AVO",
	"avô":         "AVO",
	"abuela":      "ABU",
	"abuelo":      "ABU",
	"cachorro":    "DOG",
	"perro":       "DOG",
	"dog":         "DOG",
	"gato":        "GAT",
	"cat":         "CAT",
	"veterinário": "VET",
	"veterinario": "VET",
	"vet":         "VET",
	"plantas":     "PLT",
	"regar":       "REG",
	"jardim":      "JAR",
	"jardín":      "JAR",
	"garden":      "GDN",

	// fitness & leisure
	"academia":   "ACA",
	"gimnasio":   "GIM",
	"gym":        "GYM",
	"treino":     "TRN",
	"treinar":    "TRN",
	"entrenar":   "ETR",
	"workout":    "WKT",
	"corrida":    "CRD",
	"correr":     "CRR",
	"run":        "RN",
	"caminhada":  "CAM",
	"caminar":    "CAM",
	"walk":       "WLK",
	"futebol":    "FUT",
	"fútbol":     "FUT",
	"futbol":     "FUT",
	"soccer":     "SOC",
	"jogo":       "JOG",
	"juego":      "JUE",
	"game":       "GAM",
	"filme":      "FLM",
	"película":   "PEL",
	"pelicula":   "PEL",
	"movie":      "MOV",
	"série":      "SER",
	"serie":      "SER",
	"show":       "SHW",
	"cinema":     "CIN",
	"cine":       "CIN",
	"teatro":     "TEA",
	"viagem":     "VIA",
	"viaje":      "VIA",
	"trip":       "TRP",
	"voo":        "VOO",
	"vuelo":      "VUE",
	"flight":     "FLT",
	"ônibus":     "ONI",
	"onibus":     "ONI",
	"autobús":    "BUS",
	"bus":        "BUS",
	"trem":       "TRM",
	"tren":       "TRN",
	"train":      "TRA",
	"hotel":      "HOT",
	"praia":      "PRA",
	"playa":      "PLA",
	"beach":      "BCH",
	"piscina":    "PIS",
	"pool":       "POL",
	"yoga":       "YOG",
	"meditação":  "MDT",
	"meditar":    "MDT",
	"meditate":   "MDT",
	"dormir":     "DOR",
	"sleep":      "SLP",
	"acordar":    "ACD",
	"despertar":  "DES",
	"wake":       "WAK",
	"descanso":   "DSC",
	"pausa":      "PAU",
	"break":      "BRK",
}

// confusingPrefixes are tokens a generated prefix must avoid: Brazilian
// state codes and acronyms users read as something else.
var confusingPrefixes = map[string]bool{
	"SP": true, "RJ": true, "MG": true, "RS": true, "PR": true,
	"SC": true, "BA": true, "PE": true, "CE": true, "GO": true,
	"DF": true, "ES": true, "AM": true, "PA": true, "MA": true,
	"MT": true, "MS": true, "PB": true, "RN": true, "AL": true,
	"PI": true, "SE": true, "RO": true, "TO": true, "AC": true,
	"AP": true, "RR": true,
	"CPF": true, "CNH": true, "CEP": true, "PIX": true, "SUS": true,
	"URL": true, "USA": true, "SOS": true, "VIP": true, "DNI": true,
}

// stopwords are skipped when picking the fallback prefix word.
var stopwords = map[string]bool{
	"o": true, "a": true, "os": true, "as": true, "um": true, "uma": true,
	"de": true, "do": true, "da": true, "dos": true, "das": true,
	"em": true, "no": true, "na": true, "nos": true, "nas": true,
	"para": true, "pra": true, "por": true, "com": true, "sem": true,
	"que": true, "e": true, "ou": true, "se": true, "ao": true, "à": true,
	"el": true, "la": true, "los": true, "las": true, "un": true,
	"una": true, "del": true, "al": true, "en": true, "con": true,
	"the": true, "an": true, "of": true, "to": true, "in": true,
	"on": true, "at": true, "for": true, "and": true, "or": true,
	"my": true, "me": true, "meu": true, "minha": true, "mi": true,
}
